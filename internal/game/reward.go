package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/game/deck"
	"github.com/wfunc/card-dungeon/internal/models"
)

// StartRewardPhase 开始奖励选卡窗口。候选牌由对局种子和层数
// 决定，同一层重开窗口会得到完全相同的候选。
func (s *GameService) StartRewardPhase(ctx context.Context, gameID uint) error {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()
	return s.startRewardLocked(ctx, gameID)
}

func (s *GameService) startRewardLocked(ctx context.Context, gameID uint) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Phase != models.PhaseReward {
		return nil
	}

	round := &rewardRound{
		gameID:    gameID,
		floor:     game.CurrentFloor,
		endsAt:    time.Now().Add(s.config.RewardDuration),
		options:   s.rewardOptions(game.Seed, game.CurrentFloor),
		picks:     make(map[uint]string),
		confirmed: make(map[uint]bool),
	}
	round.timer = time.AfterFunc(s.config.RewardDuration, func() {
		s.resolveRewardOnTimeout(gameID, round)
	})
	s.rounds.setReward(gameID, round)

	s.logger.Debug("奖励阶段开始",
		zap.Uint("game_id", gameID),
		zap.Int("floor", game.CurrentFloor))

	s.notifier.GameUpdate(game)
	s.notifier.RewardUpdate(rewardSnapshot(round))
	return nil
}

// rewardOptions 生成本层奖励候选：候选池按确定性种子洗牌后取前几张
func (s *GameService) rewardOptions(seed string, floor int) []models.Card {
	shuffled := deck.Shuffle(deck.NewRewardPool(), fmt.Sprintf("%s-reward-%d", seed, floor))
	return shuffled[:s.config.RewardOptions]
}

// resolveRewardOnTimeout 奖励窗口超时后由定时器触发结算
func (s *GameService) resolveRewardOnTimeout(gameID uint, round *rewardRound) {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	if s.rounds.getReward(gameID) != round || round.resolved {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	if err := s.resolveRewardLocked(ctx, round); err != nil {
		s.logger.Error("奖励阶段超时结算失败", zap.Uint("game_id", gameID), zap.Error(err))
	}
}

// PickReward 预选（或取消预选）奖励卡。
// 一张卡同时只能被一个玩家占用，先到先得；传空cardID表示释放。
func (s *GameService) PickReward(ctx context.Context, gameID, userID uint, cardID string) error {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	round := s.rounds.getReward(gameID)
	if round == nil {
		return apperrors.New(apperrors.ErrRoundNotActive)
	}
	if time.Now().After(round.endsAt) {
		return apperrors.New(apperrors.ErrRoundClosed)
	}
	if round.confirmed[userID] {
		return apperrors.New(apperrors.ErrActionConfirmed)
	}

	if cardID == "" {
		delete(round.picks, userID)
		s.notifier.RewardUpdate(rewardSnapshot(round))
		return nil
	}

	valid := false
	for _, c := range round.options {
		if c.ID == cardID {
			valid = true
			break
		}
	}
	if !valid {
		return apperrors.New(apperrors.ErrCardNotFound)
	}

	for otherUserID, otherCardID := range round.picks {
		if otherCardID == cardID && otherUserID != userID {
			return apperrors.New(apperrors.ErrCardTaken)
		}
	}

	round.picks[userID] = cardID
	s.notifier.RewardUpdate(rewardSnapshot(round))
	return nil
}

// ConfirmReward 确认奖励选择（没选卡视为放弃，结算时自动分配）。
// 所有存活玩家确认后立即结算进入下一层。
func (s *GameService) ConfirmReward(ctx context.Context, gameID, userID uint) error {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	round := s.rounds.getReward(gameID)
	if round == nil {
		return apperrors.New(apperrors.ErrRoundNotActive)
	}
	if time.Now().After(round.endsAt) {
		return nil
	}

	round.confirmed[userID] = true
	s.notifier.RewardUpdate(rewardSnapshot(round))
	return s.maybeResolveRewardEarly(ctx, round)
}

// maybeResolveRewardEarly 全体存活玩家确认后提前结算
func (s *GameService) maybeResolveRewardEarly(ctx context.Context, round *rewardRound) error {
	game, err := s.repo.FindByID(ctx, round.gameID)
	if err != nil {
		return err
	}

	for _, p := range game.AlivePlayers() {
		if !round.confirmed[p.UserID] {
			return nil
		}
	}

	if round.timer != nil {
		round.timer.Stop()
	}
	return s.resolveRewardLocked(ctx, round)
}

// resolveRewardLocked 结算奖励阶段（调用方需持有该局锁）。
// 没选卡的玩家按行动顺序从剩余候选里确定性自动分配，
// 选中的卡以新ID复制进各自牌堆，然后推进到下一层。
func (s *GameService) resolveRewardLocked(ctx context.Context, round *rewardRound) (err error) {
	if round.resolved {
		return nil
	}
	round.resolved = true
	// 结算中途失败时回滚标记并注销窗口，
	// 否则窗口永远卡在已结算状态，本局再也无法推进
	defer func() {
		if err != nil {
			round.resolved = false
			s.rounds.clearReward(round.gameID, round)
		}
	}()

	game, err := s.repo.FindByID(ctx, round.gameID)
	if err != nil {
		return err
	}
	if game.Phase != models.PhaseReward {
		s.rounds.clearReward(round.gameID, round)
		return nil
	}

	alive := game.AlivePlayers()
	if len(alive) == 0 {
		s.rounds.clearReward(round.gameID, round)
		return nil
	}

	// 自动分配：按行动顺序，只在未被占用的候选里用种子随机选
	taken := make(map[string]bool, len(round.picks))
	for _, cardID := range round.picks {
		taken[cardID] = true
	}
	for _, p := range alive {
		if _, ok := round.picks[p.UserID]; !ok {
			available := make([]models.Card, 0, len(round.options))
			for _, c := range round.options {
				if !taken[c.ID] {
					available = append(available, c)
				}
			}
			if len(available) > 0 {
				idx := deck.SeededIndex(fmt.Sprintf("%s-%d-%d", game.Seed, game.CurrentFloor, p.UserID), len(available))
				pick := available[idx]
				round.picks[p.UserID] = pick.ID
				taken[pick.ID] = true
			}
		}
		round.confirmed[p.UserID] = true
	}

	// 选中的卡以全新ID复制进牌堆，互不影响后续层的候选
	for _, p := range alive {
		pickedID, ok := round.picks[p.UserID]
		if !ok {
			continue
		}
		var picked *models.Card
		for i := range round.options {
			if round.options[i].ID == pickedID {
				picked = &round.options[i]
				break
			}
		}
		if picked == nil {
			continue
		}

		reward := *picked
		reward.ID = uuid.NewString()
		newDeck := append(models.CardList{}, p.Deck...)
		newDeck = append(newDeck, reward)
		if err := s.repo.UpdatePlayerFields(ctx, p.ID, map[string]interface{}{
			"deck": newDeck,
		}); err != nil {
			return err
		}
	}

	s.rounds.clearReward(round.gameID, round)
	return s.advanceToNextFloor(ctx, round.gameID)
}
