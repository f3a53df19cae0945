package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/gorm"
)

// LobbyRepository 大厅仓储接口
type LobbyRepository interface {
	BaseRepository
	Create(ctx context.Context, lobby *models.Lobby) error
	Update(ctx context.Context, lobby *models.Lobby) error
	UpdateStatus(ctx context.Context, id uint, status models.LobbyStatus) error
	UpdateOwner(ctx context.Context, id uint, ownerID uint) error
	FindByID(ctx context.Context, id uint) (*models.Lobby, error)
	GetOpen(ctx context.Context, pagination *Pagination) ([]*models.Lobby, error)
	AddPlayer(ctx context.Context, player *models.LobbyPlayer) error
	RemovePlayer(ctx context.Context, lobbyID, userID uint) error
	SetReady(ctx context.Context, lobbyID, userID uint, ready bool) error
}

// lobbyRepo 大厅仓储实现
type lobbyRepo struct {
	*BaseRepo
}

// NewLobbyRepository 创建大厅仓储
func NewLobbyRepository(db *gorm.DB) LobbyRepository {
	return &lobbyRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建大厅
func (r *lobbyRepo) Create(ctx context.Context, lobby *models.Lobby) error {
	return r.db.WithContext(ctx).Create(lobby).Error
}

// Update 保存大厅
func (r *lobbyRepo) Update(ctx context.Context, lobby *models.Lobby) error {
	return r.db.WithContext(ctx).Save(lobby).Error
}

// UpdateStatus 更新大厅状态
func (r *lobbyRepo) UpdateStatus(ctx context.Context, id uint, status models.LobbyStatus) error {
	return r.db.WithContext(ctx).Model(&models.Lobby{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// UpdateOwner 更新房主（房主离开时转让）
func (r *lobbyRepo) UpdateOwner(ctx context.Context, id uint, ownerID uint) error {
	return r.db.WithContext(ctx).Model(&models.Lobby{}).
		Where("id = ?", id).
		Update("owner_id", ownerID).Error
}

// FindByID 根据ID查找大厅（预加载成员）
func (r *lobbyRepo) FindByID(ctx context.Context, id uint) (*models.Lobby, error) {
	var lobby models.Lobby
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Players.User").
		First(&lobby, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrLobbyNotFound)
		}
		return nil, err
	}
	return &lobby, nil
}

// GetOpen 获取等待中的大厅（分页）
func (r *lobbyRepo) GetOpen(ctx context.Context, pagination *Pagination) ([]*models.Lobby, error) {
	var lobbies []*models.Lobby
	query := r.db.WithContext(ctx).Model(&models.Lobby{}).
		Where("status = ?", models.LobbyWaiting)

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Preload("Players").
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&lobbies).Error
	return lobbies, err
}

// AddPlayer 添加大厅成员
func (r *lobbyRepo) AddPlayer(ctx context.Context, player *models.LobbyPlayer) error {
	return r.db.WithContext(ctx).Create(player).Error
}

// RemovePlayer 移除大厅成员
func (r *lobbyRepo) RemovePlayer(ctx context.Context, lobbyID, userID uint) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("lobby_id = ? AND user_id = ?", lobbyID, userID).
		Delete(&models.LobbyPlayer{}).Error
}

// SetReady 设置成员准备状态
func (r *lobbyRepo) SetReady(ctx context.Context, lobbyID, userID uint, ready bool) error {
	return r.db.WithContext(ctx).Model(&models.LobbyPlayer{}).
		Where("lobby_id = ? AND user_id = ?", lobbyID, userID).
		Update("ready", ready).Error
}
