// Package game 实现合作爬塔卡牌战斗的核心玩法：
// 计划回合、结算、奖励选卡、换层推进和终局判定。
// 对局数据落库（gorm），回合窗口状态留在进程内存，
// 每局一把互斥锁串行化定时器回调和玩家请求。
package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/game/deck"
	"github.com/wfunc/card-dungeon/internal/game/enemy"
	"github.com/wfunc/card-dungeon/internal/models"
	"github.com/wfunc/card-dungeon/internal/repository"
)

// Config 玩法参数
type Config struct {
	PlanningDuration time.Duration // 计划窗口时长
	RewardDuration   time.Duration // 奖励窗口时长
	HandSize         int           // 手牌上限
	MaxFloor         int           // 通关层数
	StartingHP       int           // 初始生命
	RewardOptions    int           // 每层奖励候选数
}

// DefaultConfig 默认玩法参数
func DefaultConfig() Config {
	return Config{
		PlanningDuration: 20 * time.Second,
		RewardDuration:   20 * time.Second,
		HandSize:         4,
		MaxFloor:         50,
		StartingHP:       50,
		RewardOptions:    4,
	}
}

// normalize 补齐零值，避免配置缺失时卡死回合
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.PlanningDuration <= 0 {
		c.PlanningDuration = def.PlanningDuration
	}
	if c.RewardDuration <= 0 {
		c.RewardDuration = def.RewardDuration
	}
	if c.HandSize <= 0 {
		c.HandSize = def.HandSize
	}
	if c.MaxFloor <= 0 {
		c.MaxFloor = def.MaxFloor
	}
	if c.StartingHP <= 0 {
		c.StartingHP = def.StartingHP
	}
	if c.RewardOptions <= 0 {
		c.RewardOptions = def.RewardOptions
	}
	return c
}

// GameService 对局服务，游戏玩法的唯一入口。
// 所有写操作都先拿到该局的互斥锁再执行。
type GameService struct {
	repo      repository.GameRepository
	lobbyRepo repository.LobbyRepository
	scoreRepo repository.GameScoreRepository
	notifier  Notifier
	logger    *zap.Logger
	config    Config
	rounds    *roundRegistry
}

// NewGameService 创建对局服务
func NewGameService(
	repo repository.GameRepository,
	lobbyRepo repository.LobbyRepository,
	scoreRepo repository.GameScoreRepository,
	notifier Notifier,
	logger *zap.Logger,
	config Config,
) *GameService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameService{
		repo:      repo,
		lobbyRepo: lobbyRepo,
		scoreRepo: scoreRepo,
		notifier:  notifier,
		logger:    logger,
		config:    config.normalize(),
		rounds:    newRoundRegistry(),
	}
}

// StartGame 开始游戏：校验大厅状态和房主权限，创建对局、
// 玩家状态（种子洗牌的新手卡组）和首层敌人。
// 首个计划回合由调用方（websocket层）在广播完成后启动。
func (s *GameService) StartGame(ctx context.Context, lobbyID, userID uint) (*models.Game, error) {
	lobby, err := s.lobbyRepo.FindByID(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.Status != models.LobbyWaiting {
		return nil, apperrors.New(apperrors.ErrLobbyNotWaiting)
	}
	if lobby.OwnerID != userID {
		return nil, apperrors.New(apperrors.ErrNotLobbyOwner)
	}
	if _, err := s.repo.FindByLobbyID(ctx, lobbyID); err == nil {
		return nil, apperrors.New(apperrors.ErrGameExists)
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}
	if len(lobby.Players) == 0 {
		return nil, apperrors.New(apperrors.ErrLobbyEmpty)
	}

	seed := fmt.Sprintf("%d-%d", lobbyID, time.Now().UnixMilli())
	game := &models.Game{
		LobbyID:      lobbyID,
		Phase:        models.PhaseBattle,
		CurrentFloor: 1,
		Seed:         seed,
		TurnOrder:    models.StringList{},
	}
	if err := s.repo.Create(ctx, game); err != nil {
		return nil, err
	}

	// 每个玩家用独立种子洗新手卡组，开局即满手牌
	turnOrder := make(models.StringList, 0, len(lobby.Players)+4)
	playerIDs := make([]uint, 0, len(lobby.Players))
	for i, member := range lobby.Players {
		shuffled := deck.Shuffle(deck.NewStarterDeck(), fmt.Sprintf("%s-%d", seed, member.UserID))
		hand, remaining := deck.Draw(shuffled, s.config.HandSize)

		state := &models.PlayerState{
			GameID:  game.ID,
			UserID:  member.UserID,
			HP:      s.config.StartingHP,
			MaxHP:   s.config.StartingHP,
			Deck:    remaining,
			Hand:    hand,
			Discard: models.CardList{},
			Bonuses: models.BonusList{},
			IsAlive: true,
			Order:   i,
		}
		if err := s.repo.CreatePlayerState(ctx, state); err != nil {
			return nil, err
		}
		turnOrder = append(turnOrder, fmt.Sprintf("player-%d", member.UserID))
		playerIDs = append(playerIDs, member.UserID)
	}

	turnOrder, err = s.spawnEnemies(ctx, game.ID, 1, playerIDs, turnOrder)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateFields(ctx, game.ID, map[string]interface{}{
		"turn_order": turnOrder,
	}); err != nil {
		return nil, err
	}

	if err := s.lobbyRepo.UpdateStatus(ctx, lobbyID, models.LobbyPlaying); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("游戏开始",
		zap.Uint("game_id", game.ID),
		zap.Uint("lobby_id", lobbyID),
		zap.String("seed", seed),
		zap.Int("players", len(lobby.Players)))

	s.notifier.GameUpdate(updated)
	return updated, nil
}

// spawnEnemies 生成某一层的敌人并追加到行动顺序。
// 攻击意图默认锁定一个存活玩家，让客户端能立刻显示目标。
func (s *GameService) spawnEnemies(ctx context.Context, gameID uint, floor int, alivePlayerIDs []uint, turnOrder models.StringList) (models.StringList, error) {
	count := enemy.Count(floor, len(alivePlayerIDs))
	types := enemy.SelectTypes(floor, count)

	for i := 0; i < count; i++ {
		typ := types[len(types)-1]
		if i < len(types) {
			typ = types[i]
		}
		stats := enemy.Generate(typ, floor)
		if stats.Intent.Type == models.IntentAttack && len(stats.Intent.Targets) == 0 && len(alivePlayerIDs) > 0 {
			stats.Intent.Targets = []uint{alivePlayerIDs[rand.Intn(len(alivePlayerIDs))]}
		}

		state := &models.EnemyState{
			GameID: gameID,
			Type:   stats.Type,
			HP:     stats.HP,
			MaxHP:  stats.MaxHP,
			Intent: stats.Intent,
			Order:  len(turnOrder),
		}
		if err := s.repo.CreateEnemyState(ctx, state); err != nil {
			return nil, err
		}
		turnOrder = append(turnOrder, fmt.Sprintf("enemy-%d", state.ID))
	}
	return turnOrder, nil
}

// GetGame 查询对局
func (s *GameService) GetGame(ctx context.Context, gameID uint) (*models.Game, error) {
	return s.repo.FindByID(ctx, gameID)
}

// GetGameByLobbyID 根据大厅查询对局
func (s *GameService) GetGameByLobbyID(ctx context.Context, lobbyID uint) (*models.Game, error) {
	return s.repo.FindByLobbyID(ctx, lobbyID)
}

// ResumeRound 断线重连恢复：战斗阶段没有进行中的计划回合、
// 或奖励阶段没有进行中的奖励窗口时（比如进程重启后），重新开一轮。
func (s *GameService) ResumeRound(ctx context.Context, gameID uint) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}

	switch game.Phase {
	case models.PhaseBattle:
		if s.rounds.getPlanning(gameID) == nil {
			return s.StartPlanningRound(ctx, gameID)
		}
	case models.PhaseReward:
		if s.rounds.getReward(gameID) == nil {
			return s.StartRewardPhase(ctx, gameID)
		}
	}
	return nil
}

// PlanningState 返回当前计划回合快照，没有进行中的回合时返回nil
func (s *GameService) PlanningState(gameID uint) *PlanningSnapshot {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	round := s.rounds.getPlanning(gameID)
	if round == nil {
		return nil
	}
	return planningSnapshot(round)
}

// RewardState 返回当前奖励阶段快照，没有进行中的窗口时返回nil
func (s *GameService) RewardState(gameID uint) *RewardSnapshot {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	round := s.rounds.getReward(gameID)
	if round == nil {
		return nil
	}
	return rewardSnapshot(round)
}

// planningSnapshot 构造计划回合快照（调用方需持有该局锁）
func planningSnapshot(round *planningRound) *PlanningSnapshot {
	actions := make(map[uint]Action, len(round.actions))
	for userID, action := range round.actions {
		actions[userID] = action
	}
	confirmed := make([]uint, 0, len(round.confirmed))
	for userID := range round.confirmed {
		confirmed = append(confirmed, userID)
	}
	return &PlanningSnapshot{
		GameID:    round.gameID,
		Round:     round.round,
		EndsAt:    round.endsAt,
		Actions:   actions,
		Confirmed: confirmed,
	}
}

// rewardSnapshot 构造奖励阶段快照（调用方需持有该局锁）
func rewardSnapshot(round *rewardRound) *RewardSnapshot {
	picks := make(map[uint]string, len(round.picks))
	for userID, cardID := range round.picks {
		picks[userID] = cardID
	}
	confirmed := make([]uint, 0, len(round.confirmed))
	for userID := range round.confirmed {
		confirmed = append(confirmed, userID)
	}
	options := make([]models.Card, len(round.options))
	copy(options, round.options)
	return &RewardSnapshot{
		GameID:    round.gameID,
		Floor:     round.floor,
		EndsAt:    round.endsAt,
		Options:   options,
		Picks:     picks,
		Confirmed: confirmed,
	}
}
