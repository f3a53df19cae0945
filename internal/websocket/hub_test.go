package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop())
}

func newTestClient(hub *Hub, userID uint, username string) *Client {
	return NewClient(hub, nil, userID, username)
}

// 读取客户端发送通道里的一条消息
func receiveMessage(t *testing.T, client *Client) *Message {
	t.Helper()
	select {
	case data := <-client.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	default:
		t.Fatal("客户端没有收到消息")
		return nil
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, 1, "alice")

	hub.registerClient(client)
	assert.Equal(t, 1, hub.GetOnlineCount())
	assert.Equal(t, []uint{1}, hub.GetOnlineUsers())

	// 注册后收到connected消息
	msg := receiveMessage(t, client)
	assert.Equal(t, MessageTypeConnected, msg.Type)

	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.GetOnlineCount())
	assert.Empty(t, hub.GetOnlineUsers())
}

func TestHubSameUserMultipleClients(t *testing.T) {
	hub := newTestHub()
	c1 := newTestClient(hub, 1, "alice")
	c2 := newTestClient(hub, 1, "alice")

	hub.registerClient(c1)
	hub.registerClient(c2)
	assert.Equal(t, 2, hub.GetOnlineCount())
	assert.Len(t, hub.GetOnlineUsers(), 1)

	hub.unregisterClient(c1)
	assert.Equal(t, []uint{1}, hub.GetOnlineUsers())

	hub.unregisterClient(c2)
	assert.Empty(t, hub.GetOnlineUsers())
}

func TestHubRooms(t *testing.T) {
	hub := newTestHub()
	c1 := newTestClient(hub, 1, "alice")
	c2 := newTestClient(hub, 2, "bob")

	hub.registerClient(c1)
	hub.registerClient(c2)

	hub.JoinRoom(c1, "lobby:1")
	hub.JoinRoom(c2, "lobby:1")
	hub.JoinRoom(c1, "game:1")

	assert.True(t, hub.InRoom(c1, "lobby:1"))
	assert.True(t, hub.InRoom(c1, "game:1"))
	assert.False(t, hub.InRoom(c2, "game:1"))
	assert.Len(t, hub.RoomClients("lobby:1"), 2)

	hub.LeaveRoom(c1, "lobby:1")
	assert.False(t, hub.InRoom(c1, "lobby:1"))
	assert.Len(t, hub.RoomClients("lobby:1"), 1)
}

func TestHubSendToRoom(t *testing.T) {
	hub := newTestHub()
	c1 := newTestClient(hub, 1, "alice")
	c2 := newTestClient(hub, 2, "bob")
	c3 := newTestClient(hub, 3, "carol")

	hub.registerClient(c1)
	hub.registerClient(c2)
	hub.registerClient(c3)

	// 清掉connected消息
	receiveMessage(t, c1)
	receiveMessage(t, c2)
	receiveMessage(t, c3)

	hub.JoinRoom(c1, "game:1")
	hub.JoinRoom(c2, "game:1")

	hub.SendToRoom("game:1", &Message{Type: MessageTypeGameUpdate})

	assert.Equal(t, MessageTypeGameUpdate, receiveMessage(t, c1).Type)
	assert.Equal(t, MessageTypeGameUpdate, receiveMessage(t, c2).Type)

	// 不在房间的客户端不收到
	select {
	case <-c3.Send:
		t.Fatal("房间外的客户端不应收到消息")
	default:
	}
}

func TestHubSendToClient(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, 1, "alice")
	hub.registerClient(client)
	receiveMessage(t, client)

	err := hub.SendToClient(client.ID, &Message{Type: MessageTypeGameUpdate})
	assert.NoError(t, err)
	assert.Equal(t, MessageTypeGameUpdate, receiveMessage(t, client).Type)

	err = hub.SendToClient("not-exist", &Message{Type: MessageTypeGameUpdate})
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestHubSendToUser(t *testing.T) {
	hub := newTestHub()
	c1 := newTestClient(hub, 1, "alice")
	c2 := newTestClient(hub, 1, "alice")
	hub.registerClient(c1)
	hub.registerClient(c2)
	receiveMessage(t, c1)
	receiveMessage(t, c2)

	err := hub.SendToUser(1, &Message{Type: MessageTypeLobbyUpdate})
	assert.NoError(t, err)
	assert.Equal(t, MessageTypeLobbyUpdate, receiveMessage(t, c1).Type)
	assert.Equal(t, MessageTypeLobbyUpdate, receiveMessage(t, c2).Type)

	err = hub.SendToUser(99, &Message{Type: MessageTypeLobbyUpdate})
	assert.ErrorIs(t, err, ErrUserNotConnected)
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	hub := newTestHub()
	c1 := newTestClient(hub, 1, "alice")
	c2 := newTestClient(hub, 2, "bob")

	hub.registerClient(c1)
	hub.registerClient(c2)
	hub.JoinRoom(c1, "game:1")
	hub.JoinRoom(c2, "game:1")

	hub.unregisterClient(c1)
	clients := hub.RoomClients("game:1")
	require.Len(t, clients, 1)
	assert.Equal(t, c2.ID, clients[0].ID)
}

func TestChatHistoryCap(t *testing.T) {
	handler := NewGameMessageHandler(newTestHub(), nil, nil, nil)

	for i := 0; i < maxChatHistory+5; i++ {
		handler.appendSystemMessage(1, "消息")
	}

	messages := handler.appendSystemMessage(1, "最后一条")
	assert.Len(t, messages, maxChatHistory)
	assert.Equal(t, "最后一条", messages[len(messages)-1].Content)

	handler.ClearLobbyHistory(1)
	messages = handler.appendSystemMessage(1, "清空后")
	assert.Len(t, messages, 1)
}
