package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameRepository 游戏仓储接口。
// 对局、玩家状态、敌人状态都通过这里读写；
// 支持部分字段更新和按游戏批量删除敌人。
type GameRepository interface {
	BaseRepository
	Create(ctx context.Context, game *models.Game) error
	Update(ctx context.Context, game *models.Game) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	FindByID(ctx context.Context, id uint) (*models.Game, error)
	FindByLobbyID(ctx context.Context, lobbyID uint) (*models.Game, error)

	CreatePlayerState(ctx context.Context, state *models.PlayerState) error
	UpdatePlayerFields(ctx context.Context, id uint, fields map[string]interface{}) error
	FindPlayerStateByID(ctx context.Context, id uint) (*models.PlayerState, error)

	CreateEnemyState(ctx context.Context, state *models.EnemyState) error
	UpdateEnemyFields(ctx context.Context, id uint, fields map[string]interface{}) error
	FindEnemyStateByID(ctx context.Context, id uint) (*models.EnemyState, error)
	DeleteEnemiesByGameID(ctx context.Context, gameID uint) error
}

// gameRepo 游戏仓储实现
type gameRepo struct {
	*BaseRepo
}

// NewGameRepository 创建游戏仓储
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建对局
func (r *gameRepo) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

// Update 保存对局
func (r *gameRepo) Update(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Save(game).Error
}

// UpdateFields 部分字段更新对局
func (r *gameRepo) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Updates(fields).Error
}

// orderColumn 行动顺序排序。order是保留字，交给方言各自转义
func orderColumn(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
}

// FindByID 根据ID查找对局（预加载玩家和敌人，按行动顺序）
func (r *gameRepo) FindByID(ctx context.Context, id uint) (*models.Game, error) {
	var game models.Game
	err := r.db.WithContext(ctx).
		Preload("Players", orderColumn).
		Preload("Enemies", orderColumn).
		First(&game, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrGameNotFound)
		}
		return nil, err
	}
	return &game, nil
}

// FindByLobbyID 根据大厅ID查找对局
func (r *gameRepo) FindByLobbyID(ctx context.Context, lobbyID uint) (*models.Game, error) {
	var game models.Game
	err := r.db.WithContext(ctx).
		Preload("Players", orderColumn).
		Preload("Enemies", orderColumn).
		Where("lobby_id = ?", lobbyID).
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrGameNotFound)
		}
		return nil, err
	}
	return &game, nil
}

// CreatePlayerState 创建玩家状态
func (r *gameRepo) CreatePlayerState(ctx context.Context, state *models.PlayerState) error {
	return r.db.WithContext(ctx).Create(state).Error
}

// UpdatePlayerFields 部分字段更新玩家状态
func (r *gameRepo) UpdatePlayerFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.PlayerState{}).Where("id = ?", id).Updates(fields).Error
}

// FindPlayerStateByID 根据ID查找玩家状态
func (r *gameRepo) FindPlayerStateByID(ctx context.Context, id uint) (*models.PlayerState, error) {
	var state models.PlayerState
	err := r.db.WithContext(ctx).First(&state, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrPlayerNotFound)
		}
		return nil, err
	}
	return &state, nil
}

// CreateEnemyState 创建敌人状态
func (r *gameRepo) CreateEnemyState(ctx context.Context, state *models.EnemyState) error {
	return r.db.WithContext(ctx).Create(state).Error
}

// UpdateEnemyFields 部分字段更新敌人状态
func (r *gameRepo) UpdateEnemyFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.EnemyState{}).Where("id = ?", id).Updates(fields).Error
}

// FindEnemyStateByID 根据ID查找敌人状态
func (r *gameRepo) FindEnemyStateByID(ctx context.Context, id uint) (*models.EnemyState, error) {
	var state models.EnemyState
	err := r.db.WithContext(ctx).First(&state, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrEnemyNotFound)
		}
		return nil, err
	}
	return &state, nil
}

// DeleteEnemiesByGameID 批量删除对局的所有敌人（换层时调用）
func (r *gameRepo) DeleteEnemiesByGameID(ctx context.Context, gameID uint) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("game_id = ?", gameID).
		Delete(&models.EnemyState{}).Error
}
