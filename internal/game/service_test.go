package game

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/models"
	"github.com/wfunc/card-dungeon/internal/repository"
)

// testConfig 测试用配置：窗口拉长到1小时，定时器不会在测试中触发
func testConfig() Config {
	return Config{
		PlanningDuration: time.Hour,
		RewardDuration:   time.Hour,
		HandSize:         4,
		MaxFloor:         50,
		StartingHP:       50,
		RewardOptions:    4,
	}
}

// newTestService 创建基于内存数据库的对局服务
func newTestService(t *testing.T, cfg Config) (*GameService, *gorm.DB) {
	t.Helper()
	db := repository.TestDB(t)
	svc := NewGameService(
		repository.NewGameRepository(db),
		repository.NewLobbyRepository(db),
		repository.NewGameScoreRepository(db),
		NopNotifier{},
		zap.NewNop(),
		cfg,
	)
	return svc, db
}

// startTestGame 建两人大厅并开局
func startTestGame(t *testing.T, svc *GameService, db *gorm.DB) (*models.Game, *models.User, *models.User) {
	t.Helper()
	ctx := context.Background()
	owner := repository.CreateTestUser(db, "alice")
	member := repository.CreateTestUser(db, "bob")
	lobby := repository.CreateTestLobby(db, owner, member)

	game, err := svc.StartGame(ctx, lobby.ID, owner.ID)
	require.NoError(t, err)
	return game, owner, member
}

// setHand 直接改写玩家手牌（测试固定牌面用）
func setHand(t *testing.T, db *gorm.DB, playerStateID uint, hand models.CardList) {
	t.Helper()
	err := db.Model(&models.PlayerState{}).Where("id = ?", playerStateID).
		Update("hand", hand).Error
	require.NoError(t, err)
}

// keepSingleEnemy 只保留一个指定血量和意图的敌人
func keepSingleEnemy(t *testing.T, db *gorm.DB, game *models.Game, hp int, intent models.Intent) *models.EnemyState {
	t.Helper()
	require.NotEmpty(t, game.Enemies)
	keep := game.Enemies[0]
	err := db.Unscoped().Where("game_id = ? AND id <> ?", game.ID, keep.ID).
		Delete(&models.EnemyState{}).Error
	require.NoError(t, err)

	err = db.Model(&models.EnemyState{}).Where("id = ?", keep.ID).
		Updates(map[string]interface{}{"hp": hp, "max_hp": hp, "intent": intent}).Error
	require.NoError(t, err)

	keep.HP = hp
	keep.MaxHP = hp
	keep.Intent = intent
	return &keep
}

func findPlayer(t *testing.T, game *models.Game, userID uint) *models.PlayerState {
	t.Helper()
	for i := range game.Players {
		if game.Players[i].UserID == userID {
			return &game.Players[i]
		}
	}
	t.Fatalf("玩家 %d 不在对局中", userID)
	return nil
}

func TestGameService_StartGame(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	game, owner, member := startTestGame(t, svc, db)

	assert.Equal(t, models.PhaseBattle, game.Phase)
	assert.Equal(t, 1, game.CurrentFloor)
	assert.NotEmpty(t, game.Seed)
	require.Len(t, game.Players, 2)
	assert.NotEmpty(t, game.Enemies)

	// 每个玩家满血满手牌，牌堆+手牌正好是20张新手卡组
	for _, userID := range []uint{owner.ID, member.ID} {
		p := findPlayer(t, game, userID)
		assert.Equal(t, 50, p.HP)
		assert.Equal(t, 50, p.MaxHP)
		assert.True(t, p.IsAlive)
		assert.Len(t, p.Hand, 4)
		assert.Len(t, p.Deck, 16)
		assert.Empty(t, p.Discard)
	}

	// 行动顺序：先玩家后敌人
	require.Len(t, game.TurnOrder, len(game.Players)+len(game.Enemies))
	for i, entry := range game.TurnOrder {
		if i < len(game.Players) {
			assert.True(t, strings.HasPrefix(entry, "player-"), entry)
		} else {
			assert.True(t, strings.HasPrefix(entry, "enemy-"), entry)
		}
	}

	// 敌人带公开意图，攻击意图必须有目标
	for _, e := range game.Enemies {
		assert.Greater(t, e.HP, 0)
		if e.Intent.Type == models.IntentAttack {
			assert.NotEmpty(t, e.Intent.Targets)
		}
	}

	// 大厅进入游戏中状态
	lobby, err := svc.lobbyRepo.FindByID(ctx, game.LobbyID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyPlaying, lobby.Status)
}

func TestGameService_StartGame_StarterDeckComposition(t *testing.T) {
	svc1, db1 := newTestService(t, testConfig())
	game1, owner1, _ := startTestGame(t, svc1, db1)

	svc2, db2 := newTestService(t, testConfig())
	game2, owner2, _ := startTestGame(t, svc2, db2)

	// 种子不同导致牌序不同，但牌组构成恒定（同一套新手卡组）
	p1 := findPlayer(t, game1, owner1.ID)
	p2 := findPlayer(t, game2, owner2.ID)
	count1 := map[string]int{}
	count2 := map[string]int{}
	for _, c := range append(p1.Deck, p1.Hand...) {
		count1[fmt.Sprintf("%s-%s", c.Suit, c.Rank)]++
	}
	for _, c := range append(p2.Deck, p2.Hand...) {
		count2[fmt.Sprintf("%s-%s", c.Suit, c.Rank)]++
	}
	assert.Equal(t, count1, count2)
}

func TestGameService_StartGame_NotOwner(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	owner := repository.CreateTestUser(db, "alice")
	member := repository.CreateTestUser(db, "bob")
	lobby := repository.CreateTestLobby(db, owner, member)

	_, err := svc.StartGame(ctx, lobby.ID, member.ID)
	assert.Equal(t, apperrors.ErrNotLobbyOwner, apperrors.GetCode(err))
}

func TestGameService_StartGame_AlreadyExists(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	game, owner, _ := startTestGame(t, svc, db)

	// 大厅已在游戏中
	_, err := svc.StartGame(ctx, game.LobbyID, owner.ID)
	assert.Equal(t, apperrors.ErrLobbyNotWaiting, apperrors.GetCode(err))

	// 即使大厅状态被改回等待，也不允许重复开局
	require.NoError(t, db.Model(&models.Lobby{}).Where("id = ?", game.LobbyID).
		Update("status", models.LobbyWaiting).Error)
	_, err = svc.StartGame(ctx, game.LobbyID, owner.ID)
	assert.Equal(t, apperrors.ErrGameExists, apperrors.GetCode(err))
}

func TestGameService_GetGameByLobbyID(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	game, _, _ := startTestGame(t, svc, db)

	found, err := svc.GetGameByLobbyID(ctx, game.LobbyID)
	require.NoError(t, err)
	assert.Equal(t, game.ID, found.ID)

	_, err = svc.GetGameByLobbyID(ctx, game.LobbyID+100)
	assert.Equal(t, apperrors.ErrGameNotFound, apperrors.GetCode(err))
}

func TestGameService_ResumeRound(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	game, _, _ := startTestGame(t, svc, db)

	// 战斗阶段但没有进行中的计划回合（比如进程重启后）
	require.Nil(t, svc.PlanningState(game.ID))
	require.NoError(t, svc.ResumeRound(ctx, game.ID))
	assert.NotNil(t, svc.PlanningState(game.ID))

	// 已有回合时恢复是幂等的
	before := svc.PlanningState(game.ID)
	require.NoError(t, svc.ResumeRound(ctx, game.ID))
	assert.Equal(t, before.Round, svc.PlanningState(game.ID).Round)
}
