package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/game"
	"github.com/wfunc/card-dungeon/internal/models"
	"github.com/wfunc/card-dungeon/internal/service"
	"go.uber.org/zap"
)

const maxChatHistory = 15

// lobbyRoom 大厅房间名
func lobbyRoom(lobbyID uint) string {
	return fmt.Sprintf("lobby:%d", lobbyID)
}

// gameRoom 游戏房间名
func gameRoom(gameID uint) string {
	return fmt.Sprintf("game:%d", gameID)
}

// ChatMessage 大厅聊天消息
type ChatMessage struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // system或chat
	AuthorID  uint   `json:"author_id,omitempty"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// GameMessageHandler 游戏消息处理器，把客户端消息路由到对应的服务
type GameMessageHandler struct {
	hub          *Hub
	gameService  *game.GameService
	lobbyService service.LobbyService
	logger       *zap.Logger

	// 每个大厅保留最近的聊天记录
	chatMu      sync.Mutex
	chatHistory map[uint][]ChatMessage
}

// NewGameMessageHandler 创建游戏消息处理器
func NewGameMessageHandler(
	hub *Hub,
	gameService *game.GameService,
	lobbyService service.LobbyService,
	logger *zap.Logger,
) *GameMessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameMessageHandler{
		hub:          hub,
		gameService:  gameService,
		lobbyService: lobbyService,
		logger:       logger,
		chatHistory:  make(map[uint][]ChatMessage),
	}
}

// 客户端消息载荷
type lobbyPayload struct {
	LobbyID uint `json:"lobby_id"`
}

type chatPayload struct {
	LobbyID uint   `json:"lobby_id"`
	Message string `json:"message"`
}

type gamePayload struct {
	GameID uint `json:"game_id"`
}

type startGamePayload struct {
	LobbyID uint `json:"lobby_id"`
}

type actionPayload struct {
	GameID uint        `json:"game_id"`
	Action game.Action `json:"action"`
}

type rewardPickPayload struct {
	GameID uint   `json:"game_id"`
	CardID string `json:"card_id"`
}

// HandleClientMessage 处理客户端消息
func (h *GameMessageHandler) HandleClientMessage(client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendError(MessageTypeError, "消息格式错误")
		return
	}
	if msg.Type == "" {
		client.SendError(MessageTypeError, "消息类型不能为空")
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case MessageTypeLobbyJoin:
		h.handleLobbyJoin(ctx, client, msg.Data)
	case MessageTypeLobbyLeave:
		h.handleLobbyLeave(ctx, client, msg.Data)
	case MessageTypeLobbyChat:
		h.handleLobbyChat(client, msg.Data)
	case MessageTypeGameStart:
		h.handleGameStart(ctx, client, msg.Data)
	case MessageTypeGameJoin:
		h.handleGameJoin(ctx, client, msg.Data)
	case MessageTypeGameLeave:
		h.handleGameLeave(client, msg.Data)
	case MessageTypeGameAction:
		h.handleGameAction(ctx, client, msg.Data)
	case MessageTypeGameConfirm:
		h.handleGameConfirm(ctx, client, msg.Data)
	case MessageTypeGameRewardPick:
		h.handleRewardPick(ctx, client, msg.Data)
	case MessageTypeGameRewardConfirm:
		h.handleRewardConfirm(ctx, client, msg.Data)
	case MessageTypeGameGetState:
		h.handleGetState(ctx, client, msg.Data)
	default:
		h.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type))
		client.SendError(MessageTypeError, "不支持的消息类型: "+msg.Type)
	}
}

// handleLobbyJoin 加入大厅房间
func (h *GameMessageHandler) handleLobbyJoin(ctx context.Context, client *Client, data json.RawMessage) {
	var payload lobbyPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.LobbyID == 0 {
		client.SendError(MessageTypeLobbyError, "无效的大厅参数")
		return
	}

	lobby, err := h.lobbyService.Get(ctx, payload.LobbyID)
	if err != nil {
		h.sendServiceError(client, MessageTypeLobbyError, err)
		return
	}

	member := false
	for _, p := range lobby.Players {
		if p.UserID == client.UserID {
			member = true
			break
		}
	}
	if !member {
		client.SendError(MessageTypeLobbyError, "不是该大厅的成员")
		return
	}

	h.hub.JoinRoom(client, lobbyRoom(lobby.ID))

	messages := h.appendSystemMessage(lobby.ID, fmt.Sprintf("%s 加入了大厅", client.Username))
	h.broadcastLobbyUpdate(lobby, messages)
}

// handleLobbyLeave 离开大厅房间
func (h *GameMessageHandler) handleLobbyLeave(ctx context.Context, client *Client, data json.RawMessage) {
	var payload lobbyPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.LobbyID == 0 {
		return
	}

	h.hub.LeaveRoom(client, lobbyRoom(payload.LobbyID))

	lobby, err := h.lobbyService.Get(ctx, payload.LobbyID)
	if err != nil {
		return
	}
	messages := h.appendSystemMessage(lobby.ID, fmt.Sprintf("%s 离开了大厅", client.Username))
	h.broadcastLobbyUpdate(lobby, messages)
}

// handleLobbyChat 大厅聊天
func (h *GameMessageHandler) handleLobbyChat(client *Client, data json.RawMessage) {
	var payload chatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.LobbyID == 0 || payload.Message == "" {
		client.SendError(MessageTypeLobbyError, "无效的聊天参数")
		return
	}

	if !h.hub.InRoom(client, lobbyRoom(payload.LobbyID)) {
		client.SendError(MessageTypeLobbyError, "请先加入大厅")
		return
	}

	message := ChatMessage{
		ID:        uuid.NewString(),
		Type:      "chat",
		AuthorID:  client.UserID,
		Content:   payload.Message,
		Timestamp: time.Now().UnixMilli(),
	}
	messages := h.appendChatMessage(payload.LobbyID, message)

	h.sendToRoom(lobbyRoom(payload.LobbyID), MessageTypeLobbyChat, map[string]interface{}{
		"message":  message,
		"messages": messages,
	})
}

// handleGameStart 房主开始游戏
func (h *GameMessageHandler) handleGameStart(ctx context.Context, client *Client, data json.RawMessage) {
	var payload startGamePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.LobbyID == 0 {
		client.SendError(MessageTypeGameError, "无效的开局参数")
		return
	}

	g, err := h.gameService.StartGame(ctx, payload.LobbyID, client.UserID)
	if err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
		return
	}

	// 把大厅房间里的玩家全部拉进游戏房间
	for _, c := range h.hub.RoomClients(lobbyRoom(payload.LobbyID)) {
		for _, p := range g.Players {
			if p.UserID == c.UserID {
				h.hub.JoinRoom(c, gameRoom(g.ID))
				break
			}
		}
	}

	h.sendToRoom(gameRoom(g.ID), MessageTypeGameStarted, map[string]interface{}{"game": g})
	h.sendToRoom(gameRoom(g.ID), MessageTypeGameUpdate, map[string]interface{}{"game": g})

	if err := h.gameService.StartPlanningRound(ctx, g.ID); err != nil {
		h.logger.Error("开始计划回合失败", zap.Error(err), zap.Uint("gameID", g.ID))
	}
}

// handleGameJoin 加入游戏房间并同步状态
func (h *GameMessageHandler) handleGameJoin(ctx context.Context, client *Client, data json.RawMessage) {
	var payload gamePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		client.SendError(MessageTypeGameError, "无效的游戏参数")
		return
	}

	g, err := h.gameService.GetGame(ctx, payload.GameID)
	if err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
		return
	}

	isPlayer := false
	for _, p := range g.Players {
		if p.UserID == client.UserID {
			isPlayer = true
			break
		}
	}
	if !isPlayer {
		client.SendError(MessageTypeGameError, "你不是该游戏的玩家")
		return
	}

	h.hub.JoinRoom(client, gameRoom(g.ID))
	client.SendMessage(MessageTypeGameUpdate, map[string]interface{}{"game": g})

	// 战斗和奖励阶段把当前回合窗口同步给新连接，掉线重连后回合继续
	switch g.Phase {
	case models.PhaseBattle:
		if planning := h.gameService.PlanningState(g.ID); planning != nil {
			client.SendMessage(MessageTypeGamePlanning, planningPayload(g.ID, planning))
		} else if err := h.gameService.ResumeRound(ctx, g.ID); err != nil {
			h.logger.Error("恢复计划回合失败", zap.Error(err), zap.Uint("gameID", g.ID))
		}
	case models.PhaseReward:
		if reward := h.gameService.RewardState(g.ID); reward != nil {
			client.SendMessage(MessageTypeGameReward, rewardPayload(g.ID, reward))
		} else if err := h.gameService.ResumeRound(ctx, g.ID); err != nil {
			h.logger.Error("恢复奖励阶段失败", zap.Error(err), zap.Uint("gameID", g.ID))
		}
	}
}

// handleGameLeave 离开游戏房间
func (h *GameMessageHandler) handleGameLeave(client *Client, data json.RawMessage) {
	var payload gamePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		return
	}
	h.hub.LeaveRoom(client, gameRoom(payload.GameID))
}

// handleGameAction 提交计划行动
func (h *GameMessageHandler) handleGameAction(ctx context.Context, client *Client, data json.RawMessage) {
	var payload actionPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		client.SendError(MessageTypeGameError, "无效的行动参数")
		return
	}

	if err := h.gameService.SubmitPlannedAction(ctx, payload.GameID, client.UserID, payload.Action); err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
	}
}

// handleGameConfirm 确认计划行动
func (h *GameMessageHandler) handleGameConfirm(ctx context.Context, client *Client, data json.RawMessage) {
	var payload gamePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		client.SendError(MessageTypeGameError, "无效的确认参数")
		return
	}

	if err := h.gameService.ConfirmPlannedAction(ctx, payload.GameID, client.UserID); err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
	}
}

// handleRewardPick 选择奖励卡牌，card_id为空表示取消选择
func (h *GameMessageHandler) handleRewardPick(ctx context.Context, client *Client, data json.RawMessage) {
	var payload rewardPickPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		client.SendError(MessageTypeGameError, "无效的奖励参数")
		return
	}

	if err := h.gameService.PickReward(ctx, payload.GameID, client.UserID, payload.CardID); err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
	}
}

// handleRewardConfirm 确认奖励选择
func (h *GameMessageHandler) handleRewardConfirm(ctx context.Context, client *Client, data json.RawMessage) {
	var payload gamePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		client.SendError(MessageTypeGameError, "无效的确认参数")
		return
	}

	if err := h.gameService.ConfirmReward(ctx, payload.GameID, client.UserID); err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
	}
}

// handleGetState 查询游戏状态
func (h *GameMessageHandler) handleGetState(ctx context.Context, client *Client, data json.RawMessage) {
	var payload gamePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.GameID == 0 {
		client.SendError(MessageTypeGameError, "无效的游戏参数")
		return
	}

	g, err := h.gameService.GetGame(ctx, payload.GameID)
	if err != nil {
		h.sendServiceError(client, MessageTypeGameError, err)
		return
	}
	client.SendMessage(MessageTypeGameUpdate, map[string]interface{}{"game": g})
}

// appendSystemMessage 追加系统消息并返回最近的聊天记录
func (h *GameMessageHandler) appendSystemMessage(lobbyID uint, content string) []ChatMessage {
	return h.appendChatMessage(lobbyID, ChatMessage{
		ID:        uuid.NewString(),
		Type:      "system",
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *GameMessageHandler) appendChatMessage(lobbyID uint, message ChatMessage) []ChatMessage {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()

	messages := append(h.chatHistory[lobbyID], message)
	if len(messages) > maxChatHistory {
		messages = messages[len(messages)-maxChatHistory:]
	}
	h.chatHistory[lobbyID] = messages

	out := make([]ChatMessage, len(messages))
	copy(out, messages)
	return out
}

// ClearLobbyHistory 清除大厅聊天记录
func (h *GameMessageHandler) ClearLobbyHistory(lobbyID uint) {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()
	delete(h.chatHistory, lobbyID)
}

func (h *GameMessageHandler) broadcastLobbyUpdate(lobby *models.Lobby, messages []ChatMessage) {
	h.sendToRoom(lobbyRoom(lobby.ID), MessageTypeLobbyUpdate, map[string]interface{}{
		"lobby":    lobby,
		"messages": messages,
	})
}

func (h *GameMessageHandler) sendToRoom(room, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("序列化房间消息失败", zap.Error(err), zap.String("type", msgType))
		return
	}
	h.hub.SendToRoom(room, &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// sendServiceError 把服务层错误转成客户端错误消息
func (h *GameMessageHandler) sendServiceError(client *Client, msgType string, err error) {
	var appErr *apperrors.AppError
	if e, ok := err.(*apperrors.AppError); ok {
		appErr = e
	}
	if appErr != nil {
		client.SendError(msgType, appErr.Message)
		return
	}
	h.logger.Error("处理客户端消息失败",
		zap.String("client_id", client.ID),
		zap.Error(err))
	client.SendError(msgType, "服务器内部错误")
}

func planningPayload(gameID uint, snapshot *game.PlanningSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"game_id":   gameID,
		"round":     snapshot.Round,
		"ends_at":   snapshot.EndsAt.UnixMilli(),
		"actions":   snapshot.Actions,
		"confirmed": snapshot.Confirmed,
	}
}

func rewardPayload(gameID uint, snapshot *game.RewardSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"game_id":   gameID,
		"floor":     snapshot.Floor,
		"ends_at":   snapshot.EndsAt.UnixMilli(),
		"options":   snapshot.Options,
		"picks":     snapshot.Picks,
		"confirmed": snapshot.Confirmed,
	}
}
