package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/gorm"
)

// GameScoreRepositoryTestSuite 对局成绩仓储测试套件
type GameScoreRepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	repo  GameScoreRepository
	user  *models.User
	lobby *models.Lobby
}

func (suite *GameScoreRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewGameScoreRepository(suite.db)
	suite.user = CreateTestUser(suite.db, "scorer")
	suite.lobby = CreateTestLobby(suite.db, suite.user)
}

// TestGameScoreRepository_Upsert 测试幂等写入成绩
func (suite *GameScoreRepositoryTestSuite) TestGameScoreRepository_Upsert() {
	ctx := context.Background()

	err := suite.repo.Upsert(ctx, &models.GameScore{
		UserID:   suite.user.ID,
		LobbyID:  suite.lobby.ID,
		Position: 2,
	})
	assert.NoError(suite.T(), err)

	// 再次写入同一用户+大厅应覆盖而不是新增
	err = suite.repo.Upsert(ctx, &models.GameScore{
		UserID:   suite.user.ID,
		LobbyID:  suite.lobby.ID,
		Position: -1,
	})
	assert.NoError(suite.T(), err)

	scores, err := suite.repo.FindByLobbyID(ctx, suite.lobby.ID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), scores, 1)
	assert.Equal(suite.T(), -1, scores[0].Position)
	assert.True(suite.T(), scores[0].IsVictory())
}

// TestGameScoreRepository_FindByLobbyID 测试按大厅查询成绩（按名次升序）
func (suite *GameScoreRepositoryTestSuite) TestGameScoreRepository_FindByLobbyID() {
	ctx := context.Background()

	second := CreateTestUser(suite.db, "second")
	first := CreateTestUser(suite.db, "first")

	assert.NoError(suite.T(), suite.repo.Upsert(ctx, &models.GameScore{
		UserID: second.ID, LobbyID: suite.lobby.ID, Position: 2,
	}))
	assert.NoError(suite.T(), suite.repo.Upsert(ctx, &models.GameScore{
		UserID: first.ID, LobbyID: suite.lobby.ID, Position: 1,
	}))

	scores, err := suite.repo.FindByLobbyID(ctx, suite.lobby.ID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), scores, 2)
	assert.Equal(suite.T(), first.ID, scores[0].UserID)
	assert.Equal(suite.T(), second.ID, scores[1].UserID)
}

// TestGameScoreRepository_FindByUserID 测试用户历史成绩分页
func (suite *GameScoreRepositoryTestSuite) TestGameScoreRepository_FindByUserID() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		lobby := CreateTestLobby(suite.db, suite.user)
		assert.NoError(suite.T(), suite.repo.Upsert(ctx, &models.GameScore{
			UserID: suite.user.ID, LobbyID: lobby.ID, Position: i + 1,
		}))
	}

	pagination := NewPagination(1, 2)
	scores, err := suite.repo.FindByUserID(ctx, suite.user.ID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), scores, 2)
	assert.Equal(suite.T(), int64(3), pagination.Total)

	// 其他用户的成绩不混入
	other := CreateTestUser(suite.db, "other")
	scores, err = suite.repo.FindByUserID(ctx, other.ID, NewPagination(1, 10))
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), scores)
}

func TestGameScoreRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(GameScoreRepositoryTestSuite))
}
