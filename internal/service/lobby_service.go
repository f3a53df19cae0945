package service

import (
	"context"
	"strings"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/models"
	"github.com/wfunc/card-dungeon/internal/repository"
	"go.uber.org/zap"
)

// lobbyService 大厅服务实现
type lobbyService struct {
	lobbyRepo  repository.LobbyRepository
	log        *zap.Logger
	maxPlayers int
}

// NewLobbyService 创建大厅服务，maxPlayers是单个大厅的人数上限
func NewLobbyService(lobbyRepo repository.LobbyRepository, maxPlayers int, log *zap.Logger) LobbyService {
	if maxPlayers < 2 {
		maxPlayers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &lobbyService{
		lobbyRepo:  lobbyRepo,
		log:        log,
		maxPlayers: maxPlayers,
	}
}

// Create 创建大厅，房主自动入座并处于准备状态
func (s *lobbyService) Create(ctx context.Context, ownerID uint, req *CreateLobbyRequest) (*models.Lobby, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "大厅名称不能为空")
	}

	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = s.maxPlayers
	}
	if maxPlayers < 2 || maxPlayers > s.maxPlayers {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "人数上限必须在2到%d之间", s.maxPlayers)
	}

	lobby := &models.Lobby{
		Name:       name,
		OwnerID:    ownerID,
		Status:     models.LobbyWaiting,
		MaxPlayers: maxPlayers,
	}
	if err := s.lobbyRepo.Create(ctx, lobby); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	if err := s.lobbyRepo.AddPlayer(ctx, &models.LobbyPlayer{
		LobbyID: lobby.ID,
		UserID:  ownerID,
		Ready:   true,
	}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	s.log.Info("大厅已创建",
		zap.Uint("lobbyID", lobby.ID),
		zap.Uint("ownerID", ownerID),
		zap.String("name", name))

	return s.lobbyRepo.FindByID(ctx, lobby.ID)
}

// Get 获取大厅详情
func (s *lobbyService) Get(ctx context.Context, lobbyID uint) (*models.Lobby, error) {
	return s.lobbyRepo.FindByID(ctx, lobbyID)
}

// ListOpen 列出等待中的大厅
func (s *lobbyService) ListOpen(ctx context.Context, pagination *repository.Pagination) ([]*models.Lobby, error) {
	return s.lobbyRepo.GetOpen(ctx, pagination)
}

// Join 加入大厅
func (s *lobbyService) Join(ctx context.Context, lobbyID, userID uint) (*models.Lobby, error) {
	lobby, err := s.lobbyRepo.FindByID(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.Status != models.LobbyWaiting {
		return nil, apperrors.New(apperrors.ErrLobbyNotWaiting)
	}
	for _, p := range lobby.Players {
		if p.UserID == userID {
			return nil, apperrors.New(apperrors.ErrAlreadyInLobby)
		}
	}
	if len(lobby.Players) >= lobby.MaxPlayers {
		return nil, apperrors.New(apperrors.ErrLobbyFull)
	}

	if err := s.lobbyRepo.AddPlayer(ctx, &models.LobbyPlayer{
		LobbyID: lobbyID,
		UserID:  userID,
	}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	s.log.Info("玩家加入大厅", zap.Uint("lobbyID", lobbyID), zap.Uint("userID", userID))

	return s.lobbyRepo.FindByID(ctx, lobbyID)
}

// Leave 离开大厅。房主离开时转让给最早加入的成员，空大厅直接关闭
func (s *lobbyService) Leave(ctx context.Context, lobbyID, userID uint) (*models.Lobby, error) {
	lobby, err := s.lobbyRepo.FindByID(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	found := false
	for _, p := range lobby.Players {
		if p.UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.New(apperrors.ErrNotFound, "不在该大厅中")
	}

	if err := s.lobbyRepo.RemovePlayer(ctx, lobbyID, userID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseDelete)
	}

	remaining := make([]models.LobbyPlayer, 0, len(lobby.Players))
	for _, p := range lobby.Players {
		if p.UserID != userID {
			remaining = append(remaining, p)
		}
	}

	if len(remaining) == 0 {
		if err := s.lobbyRepo.UpdateStatus(ctx, lobbyID, models.LobbyEnded); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		s.log.Info("大厅已清空并关闭", zap.Uint("lobbyID", lobbyID))
	} else if lobby.OwnerID == userID {
		// Players按加入时间升序预加载，转让给最早加入的成员
		newOwner := remaining[0].UserID
		if err := s.lobbyRepo.UpdateOwner(ctx, lobbyID, newOwner); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		s.log.Info("房主已转让",
			zap.Uint("lobbyID", lobbyID),
			zap.Uint("oldOwner", userID),
			zap.Uint("newOwner", newOwner))
	}

	return s.lobbyRepo.FindByID(ctx, lobbyID)
}

// SetReady 设置准备状态
func (s *lobbyService) SetReady(ctx context.Context, lobbyID, userID uint, ready bool) (*models.Lobby, error) {
	lobby, err := s.lobbyRepo.FindByID(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.Status != models.LobbyWaiting {
		return nil, apperrors.New(apperrors.ErrLobbyNotWaiting)
	}

	found := false
	for _, p := range lobby.Players {
		if p.UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.New(apperrors.ErrNotFound, "不在该大厅中")
	}

	if err := s.lobbyRepo.SetReady(ctx, lobbyID, userID, ready); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
	}

	return s.lobbyRepo.FindByID(ctx, lobbyID)
}
