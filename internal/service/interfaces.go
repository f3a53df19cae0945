package service

import (
	"context"

	"github.com/wfunc/card-dungeon/internal/models"
	"github.com/wfunc/card-dungeon/internal/repository"
	"github.com/wfunc/card-dungeon/internal/utils"
)

// AuthService 认证服务接口
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
}

// LobbyService 大厅服务接口
type LobbyService interface {
	Create(ctx context.Context, ownerID uint, req *CreateLobbyRequest) (*models.Lobby, error)
	Get(ctx context.Context, lobbyID uint) (*models.Lobby, error)
	ListOpen(ctx context.Context, pagination *repository.Pagination) ([]*models.Lobby, error)
	Join(ctx context.Context, lobbyID, userID uint) (*models.Lobby, error)
	Leave(ctx context.Context, lobbyID, userID uint) (*models.Lobby, error)
	SetReady(ctx context.Context, lobbyID, userID uint, ready bool) (*models.Lobby, error)
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Password string `json:"password" binding:"required,min=6"`
	Nickname string `json:"nickname"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
}

// CreateLobbyRequest 创建大厅请求
type CreateLobbyRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	MaxPlayers int    `json:"max_players"`
}
