package models

// LobbyStatus 大厅状态
type LobbyStatus string

const (
	LobbyWaiting LobbyStatus = "WAITING" // 等待开局
	LobbyPlaying LobbyStatus = "PLAYING" // 游戏进行中
	LobbyEnded   LobbyStatus = "ENDED"   // 已结束
)

// Lobby 游戏大厅表
type Lobby struct {
	BaseModel
	Name       string      `gorm:"size:100;not null" json:"name"`
	OwnerID    uint        `gorm:"not null;index" json:"owner_id"`
	Status     LobbyStatus `gorm:"size:20;not null;default:'WAITING'" json:"status"`
	MaxPlayers int         `gorm:"default:4" json:"max_players"`

	// 关联
	Players []LobbyPlayer `gorm:"foreignKey:LobbyID" json:"players"`
}

// LobbyPlayer 大厅成员表
type LobbyPlayer struct {
	BaseModel
	LobbyID uint `gorm:"not null;index;uniqueIndex:idx_lobby_user" json:"lobby_id"`
	UserID  uint `gorm:"not null;index;uniqueIndex:idx_lobby_user" json:"user_id"`
	Ready   bool `gorm:"default:false" json:"ready"`

	// 关联
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
