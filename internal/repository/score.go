package repository

import (
	"context"
	"errors"

	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/gorm"
)

// GameScoreRepository 对局成绩仓储接口
type GameScoreRepository interface {
	BaseRepository
	// Upsert 幂等写入成绩（按用户+大厅唯一）
	Upsert(ctx context.Context, score *models.GameScore) error
	FindByLobbyID(ctx context.Context, lobbyID uint) ([]*models.GameScore, error)
	FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.GameScore, error)
}

// gameScoreRepo 对局成绩仓储实现
type gameScoreRepo struct {
	*BaseRepo
}

// NewGameScoreRepository 创建对局成绩仓储
func NewGameScoreRepository(db *gorm.DB) GameScoreRepository {
	return &gameScoreRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Upsert 幂等写入成绩
func (r *gameScoreRepo) Upsert(ctx context.Context, score *models.GameScore) error {
	var existing models.GameScore
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lobby_id = ?", score.UserID, score.LobbyID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(score).Error
		}
		return err
	}

	existing.Position = score.Position
	return r.db.WithContext(ctx).Save(&existing).Error
}

// FindByLobbyID 获取大厅的所有成绩
func (r *gameScoreRepo) FindByLobbyID(ctx context.Context, lobbyID uint) ([]*models.GameScore, error) {
	var scores []*models.GameScore
	err := r.db.WithContext(ctx).
		Where("lobby_id = ?", lobbyID).
		Order("position ASC").
		Find(&scores).Error
	return scores, err
}

// FindByUserID 获取用户的历史成绩（分页）
func (r *gameScoreRepo) FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.GameScore, error) {
	var scores []*models.GameScore
	query := r.db.WithContext(ctx).Model(&models.GameScore{}).
		Where("user_id = ?", userID)

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&scores).Error
	return scores, err
}
