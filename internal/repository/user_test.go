package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/models"
	"gorm.io/gorm"
)

// UserRepositoryTestSuite 用户仓储测试套件
type UserRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo UserRepository
}

func (suite *UserRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewUserRepository(suite.db)
}

// TestUserRepository_Create 测试创建用户
func (suite *UserRepositoryTestSuite) TestUserRepository_Create() {
	ctx := context.Background()

	user := &models.User{
		Username: "testuser",
		Nickname: "Test User",
		Password: "hashed-password",
		Status:   "active",
	}

	err := suite.repo.Create(ctx, user)
	assert.NoError(suite.T(), err)
	assert.NotZero(suite.T(), user.ID)

	// 验证数据
	found, err := suite.repo.FindByID(ctx, user.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.Username, found.Username)
	assert.Equal(suite.T(), user.Nickname, found.Nickname)
}

// TestUserRepository_FindByUsername 测试根据用户名查找
func (suite *UserRepositoryTestSuite) TestUserRepository_FindByUsername() {
	ctx := context.Background()

	user := CreateTestUser(suite.db, "findbyusername")

	found, err := suite.repo.FindByUsername(ctx, "findbyusername")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID, found.ID)

	// 测试不存在的用户
	_, err = suite.repo.FindByUsername(ctx, "notexist")
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsNotFound(err))
}

// TestUserRepository_FindByID_NotFound 测试查找不存在的ID
func (suite *UserRepositoryTestSuite) TestUserRepository_FindByID_NotFound() {
	ctx := context.Background()

	_, err := suite.repo.FindByID(ctx, 99999)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsNotFound(err))
}

// TestUserRepository_Update 测试更新用户
func (suite *UserRepositoryTestSuite) TestUserRepository_Update() {
	ctx := context.Background()

	user := CreateTestUser(suite.db, "updateuser")
	user.Nickname = "新昵称"
	user.Status = "banned"

	err := suite.repo.Update(ctx, user)
	assert.NoError(suite.T(), err)

	found, err := suite.repo.FindByID(ctx, user.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "新昵称", found.Nickname)
	assert.Equal(suite.T(), "banned", found.Status)
}

// TestUserRepository_UpdateLastLogin 测试更新最后登录时间
func (suite *UserRepositoryTestSuite) TestUserRepository_UpdateLastLogin() {
	ctx := context.Background()

	user := CreateTestUser(suite.db, "loginuser")
	assert.Nil(suite.T(), user.LastLoginAt)

	err := suite.repo.UpdateLastLogin(ctx, user.ID)
	assert.NoError(suite.T(), err)

	found, err := suite.repo.FindByID(ctx, user.ID)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), found.LastLoginAt)
	assert.WithinDuration(suite.T(), time.Now(), *found.LastLoginAt, 5*time.Second)
}

// TestUserRepository_DuplicateUsername 测试用户名唯一约束
func (suite *UserRepositoryTestSuite) TestUserRepository_DuplicateUsername() {
	ctx := context.Background()

	CreateTestUser(suite.db, "dupuser")

	err := suite.repo.Create(ctx, &models.User{
		Username: "dupuser",
		Password: "hashed-password",
	})
	assert.Error(suite.T(), err)
}

func TestUserRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(UserRepositoryTestSuite))
}
