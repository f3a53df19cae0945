package repository

import (
	"testing"

	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建内存测试数据库并迁移所有模型
func SetupTestDB() *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Lobby{},
		&models.LobbyPlayer{},
		&models.Game{},
		&models.PlayerState{},
		&models.EnemyState{},
		&models.GameScore{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// TestDB 为单个测试创建独立的内存数据库
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return SetupTestDB()
}

// CreateTestUser 创建测试用户
func CreateTestUser(db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username: username,
		Nickname: username,
		Password: "hashed-password",
	}
	if err := db.Create(user).Error; err != nil {
		panic(err)
	}
	return user
}

// CreateTestLobby 创建测试大厅（含成员）
func CreateTestLobby(db *gorm.DB, owner *models.User, members ...*models.User) *models.Lobby {
	lobby := &models.Lobby{
		Name:       "测试大厅",
		OwnerID:    owner.ID,
		Status:     models.LobbyWaiting,
		MaxPlayers: 4,
	}
	if err := db.Create(lobby).Error; err != nil {
		panic(err)
	}

	all := append([]*models.User{owner}, members...)
	for _, u := range all {
		player := &models.LobbyPlayer{LobbyID: lobby.ID, UserID: u.ID}
		if err := db.Create(player).Error; err != nil {
			panic(err)
		}
	}
	return lobby
}
