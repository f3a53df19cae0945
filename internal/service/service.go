package service

import (
	"time"

	"github.com/wfunc/card-dungeon/internal/repository"
	"github.com/wfunc/card-dungeon/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 服务配置
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxLobbyPlayers    int
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:          "card-dungeon-dev-secret",
		AccessTokenExpiry:  24 * time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		MaxLobbyPlayers:    4,
	}
}

// Services 服务集合
type Services struct {
	Auth  AuthService
	Lobby LobbyService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, config *Config, log *zap.Logger) *Services {
	userRepo := repository.NewUserRepository(db)
	lobbyRepo := repository.NewLobbyRepository(db)

	jwtManager := utils.NewJWTManager(
		config.JWTSecret,
		config.AccessTokenExpiry,
		config.RefreshTokenExpiry,
	)

	return &Services{
		Auth:  NewAuthService(userRepo, jwtManager, log),
		Lobby: NewLobbyService(lobbyRepo, config.MaxLobbyPlayers, log),
	}
}
