package game

import (
	"time"

	"github.com/wfunc/card-dungeon/internal/models"
)

// PlanningSnapshot 计划回合的对外快照，用于推送给房间内所有客户端
type PlanningSnapshot struct {
	GameID    uint            `json:"game_id"`
	Round     int             `json:"round"`
	EndsAt    time.Time       `json:"ends_at"`
	Actions   map[uint]Action `json:"actions"`
	Confirmed []uint          `json:"confirmed"`
}

// RewardSnapshot 奖励阶段的对外快照
type RewardSnapshot struct {
	GameID    uint            `json:"game_id"`
	Floor     int             `json:"floor"`
	EndsAt    time.Time       `json:"ends_at"`
	Options   []models.Card   `json:"options"`
	Picks     map[uint]string `json:"picks"`
	Confirmed []uint          `json:"confirmed"`
}

// Notifier 游戏状态推送接口，由websocket层实现。
// 所有方法都在持有回合锁的情况下调用，实现方不能回调游戏服务。
type Notifier interface {
	// GameUpdate 游戏整体状态变化（血量、手牌、敌人等）
	GameUpdate(game *models.Game)
	// PlanningUpdate 计划回合状态变化（提交、确认、开始）
	PlanningUpdate(snapshot *PlanningSnapshot)
	// RewardUpdate 奖励阶段状态变化
	RewardUpdate(snapshot *RewardSnapshot)
	// PhaseChange 游戏阶段切换
	PhaseChange(gameID uint, phase models.GamePhase)
	// GameOver 游戏结束（胜利或全灭）
	GameOver(game *models.Game, victory bool)
}

// NopNotifier 空实现，测试用
type NopNotifier struct{}

func (NopNotifier) GameUpdate(*models.Game)            {}
func (NopNotifier) PlanningUpdate(*PlanningSnapshot)   {}
func (NopNotifier) RewardUpdate(*RewardSnapshot)       {}
func (NopNotifier) PhaseChange(uint, models.GamePhase) {}
func (NopNotifier) GameOver(*models.Game, bool)        {}

var _ Notifier = NopNotifier{}
