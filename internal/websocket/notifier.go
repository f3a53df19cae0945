package websocket

import (
	"encoding/json"
	"time"

	"github.com/wfunc/card-dungeon/internal/game"
	"github.com/wfunc/card-dungeon/internal/models"
	"go.uber.org/zap"
)

// GameNotifier 把游戏服务的状态变化推送到游戏房间。
// 方法在游戏服务持有回合锁时被调用，这里只做序列化和非阻塞发送。
type GameNotifier struct {
	hub    *Hub
	logger *zap.Logger
}

// NewGameNotifier 创建游戏推送器
func NewGameNotifier(hub *Hub, logger *zap.Logger) *GameNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameNotifier{hub: hub, logger: logger}
}

var _ game.Notifier = (*GameNotifier)(nil)

// GameUpdate 推送游戏整体状态
func (n *GameNotifier) GameUpdate(g *models.Game) {
	n.push(gameRoom(g.ID), MessageTypeGameUpdate, map[string]interface{}{"game": g})
}

// PlanningUpdate 推送计划回合状态
func (n *GameNotifier) PlanningUpdate(snapshot *game.PlanningSnapshot) {
	n.push(gameRoom(snapshot.GameID), MessageTypeGamePlanning, planningPayload(snapshot.GameID, snapshot))
}

// RewardUpdate 推送奖励阶段状态
func (n *GameNotifier) RewardUpdate(snapshot *game.RewardSnapshot) {
	n.push(gameRoom(snapshot.GameID), MessageTypeGameReward, rewardPayload(snapshot.GameID, snapshot))
}

// PhaseChange 推送阶段切换
func (n *GameNotifier) PhaseChange(gameID uint, phase models.GamePhase) {
	n.push(gameRoom(gameID), MessageTypeGamePhaseChange, map[string]interface{}{
		"game_id": gameID,
		"phase":   phase,
	})
}

// GameOver 推送终局结果。胜利时winners列出幸存玩家的用户ID，失败时为空
func (n *GameNotifier) GameOver(g *models.Game, victory bool) {
	winners := make([]uint, 0, len(g.Players))
	if victory {
		for _, p := range g.AlivePlayers() {
			winners = append(winners, p.UserID)
		}
	}
	n.push(gameRoom(g.ID), MessageTypeGameOver, map[string]interface{}{
		"game_id":     g.ID,
		"victory":     victory,
		"winners":     winners,
		"final_floor": g.CurrentFloor,
		"game":        g,
	})
}

func (n *GameNotifier) push(room, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("序列化推送消息失败", zap.Error(err), zap.String("type", msgType))
		return
	}
	n.hub.SendToRoom(room, &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
