package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/gorm"
)

// LobbyRepositoryTestSuite 大厅仓储测试套件
type LobbyRepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	repo  LobbyRepository
	owner *models.User
}

func (suite *LobbyRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewLobbyRepository(suite.db)
	suite.owner = CreateTestUser(suite.db, "owner")
}

// TestLobbyRepository_Create 测试创建大厅
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_Create() {
	ctx := context.Background()

	lobby := &models.Lobby{
		Name:       "勇者的地牢",
		OwnerID:    suite.owner.ID,
		Status:     models.LobbyWaiting,
		MaxPlayers: 4,
	}

	err := suite.repo.Create(ctx, lobby)
	assert.NoError(suite.T(), err)
	assert.NotZero(suite.T(), lobby.ID)

	found, err := suite.repo.FindByID(ctx, lobby.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "勇者的地牢", found.Name)
	assert.Equal(suite.T(), models.LobbyWaiting, found.Status)
}

// TestLobbyRepository_FindByID_PreloadsPlayers 测试预加载成员（按加入时间升序）
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_FindByID_PreloadsPlayers() {
	ctx := context.Background()

	member := CreateTestUser(suite.db, "member")
	lobby := CreateTestLobby(suite.db, suite.owner, member)

	found, err := suite.repo.FindByID(ctx, lobby.ID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), found.Players, 2)
	assert.Equal(suite.T(), suite.owner.ID, found.Players[0].UserID)
	assert.Equal(suite.T(), "member", found.Players[1].User.Username)
}

// TestLobbyRepository_FindByID_NotFound 测试查找不存在的大厅
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_FindByID_NotFound() {
	ctx := context.Background()

	_, err := suite.repo.FindByID(ctx, 99999)
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.ErrLobbyNotFound, apperrors.GetCode(err))
}

// TestLobbyRepository_UpdateStatus 测试更新大厅状态
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_UpdateStatus() {
	ctx := context.Background()

	lobby := CreateTestLobby(suite.db, suite.owner)

	err := suite.repo.UpdateStatus(ctx, lobby.ID, models.LobbyPlaying)
	assert.NoError(suite.T(), err)

	found, err := suite.repo.FindByID(ctx, lobby.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.LobbyPlaying, found.Status)
}

// TestLobbyRepository_UpdateOwner 测试转让房主
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_UpdateOwner() {
	ctx := context.Background()

	member := CreateTestUser(suite.db, "newowner")
	lobby := CreateTestLobby(suite.db, suite.owner, member)

	err := suite.repo.UpdateOwner(ctx, lobby.ID, member.ID)
	assert.NoError(suite.T(), err)

	found, err := suite.repo.FindByID(ctx, lobby.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), member.ID, found.OwnerID)
}

// TestLobbyRepository_AddRemovePlayer 测试成员增删
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_AddRemovePlayer() {
	ctx := context.Background()

	member := CreateTestUser(suite.db, "joiner")
	lobby := CreateTestLobby(suite.db, suite.owner)

	err := suite.repo.AddPlayer(ctx, &models.LobbyPlayer{
		LobbyID: lobby.ID,
		UserID:  member.ID,
	})
	assert.NoError(suite.T(), err)

	found, _ := suite.repo.FindByID(ctx, lobby.ID)
	assert.Len(suite.T(), found.Players, 2)

	err = suite.repo.RemovePlayer(ctx, lobby.ID, member.ID)
	assert.NoError(suite.T(), err)

	found, _ = suite.repo.FindByID(ctx, lobby.ID)
	assert.Len(suite.T(), found.Players, 1)

	// 硬删除后允许重新加入
	err = suite.repo.AddPlayer(ctx, &models.LobbyPlayer{
		LobbyID: lobby.ID,
		UserID:  member.ID,
	})
	assert.NoError(suite.T(), err)
}

// TestLobbyRepository_SetReady 测试准备状态
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_SetReady() {
	ctx := context.Background()

	member := CreateTestUser(suite.db, "readyman")
	lobby := CreateTestLobby(suite.db, suite.owner, member)

	err := suite.repo.SetReady(ctx, lobby.ID, member.ID, true)
	assert.NoError(suite.T(), err)

	found, _ := suite.repo.FindByID(ctx, lobby.ID)
	for _, p := range found.Players {
		if p.UserID == member.ID {
			assert.True(suite.T(), p.Ready)
		}
	}

	err = suite.repo.SetReady(ctx, lobby.ID, member.ID, false)
	assert.NoError(suite.T(), err)

	found, _ = suite.repo.FindByID(ctx, lobby.ID)
	for _, p := range found.Players {
		if p.UserID == member.ID {
			assert.False(suite.T(), p.Ready)
		}
	}
}

// TestLobbyRepository_GetOpen 测试获取等待中的大厅
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_GetOpen() {
	ctx := context.Background()

	waiting := CreateTestLobby(suite.db, suite.owner)

	playing := CreateTestLobby(suite.db, CreateTestUser(suite.db, "playingowner"))
	err := suite.repo.UpdateStatus(ctx, playing.ID, models.LobbyPlaying)
	assert.NoError(suite.T(), err)

	pagination := NewPagination(1, 10)
	lobbies, err := suite.repo.GetOpen(ctx, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), lobbies, 1)
	assert.Equal(suite.T(), waiting.ID, lobbies[0].ID)
	assert.Equal(suite.T(), int64(1), pagination.Total)
}

// TestLobbyRepository_GetOpen_Pagination 测试分页
func (suite *LobbyRepositoryTestSuite) TestLobbyRepository_GetOpen_Pagination() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		CreateTestLobby(suite.db, suite.owner)
	}

	pagination := NewPagination(2, 2)
	lobbies, err := suite.repo.GetOpen(ctx, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), lobbies, 2)
	assert.Equal(suite.T(), int64(5), pagination.Total)
}

func TestLobbyRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(LobbyRepositoryTestSuite))
}
