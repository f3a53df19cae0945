package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/card-dungeon/internal/game"
	"github.com/wfunc/card-dungeon/internal/repository"
	"github.com/wfunc/card-dungeon/internal/service"
	ws "github.com/wfunc/card-dungeon/internal/websocket"
	"go.uber.org/zap"
)

// APITestSuite 路由集成测试：内存数据库走完注册/大厅/开局的完整链路
type APITestSuite struct {
	suite.Suite
	engine *gin.Engine
}

func (suite *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db := repository.SetupTestDB()
	log := zap.NewNop()

	services := service.NewServices(db, service.DefaultConfig(), log)
	gameService := game.NewGameService(
		repository.NewGameRepository(db),
		repository.NewLobbyRepository(db),
		repository.NewGameScoreRepository(db),
		game.NopNotifier{},
		log,
		game.DefaultConfig(),
	)
	hub := ws.NewHub(log)

	router := NewRouter(db, services, gameService, hub, log)
	suite.engine = router.GetEngine()
}

// request 发送JSON请求，token非空时带Bearer头
func (suite *APITestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.engine.ServeHTTP(w, req)
	return w
}

func (suite *APITestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// registerUser 注册用户并返回访问令牌
func (suite *APITestSuite) registerUser(username string) string {
	w := suite.request("POST", "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())

	resp := suite.decode(w)
	token, _ := resp["access_token"].(string)
	require.NotEmpty(suite.T(), token)
	return token
}

// createLobby 创建大厅并返回ID
func (suite *APITestSuite) createLobby(token, name string) uint {
	w := suite.request("POST", "/api/v1/lobbies", token, map[string]interface{}{
		"name": name,
	})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())

	resp := suite.decode(w)
	lobby := resp["lobby"].(map[string]interface{})
	return uint(lobby["id"].(float64))
}

func (suite *APITestSuite) TestHealthCheck() {
	w := suite.request("GET", "/health", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("healthy", suite.decode(w)["status"])
}

func (suite *APITestSuite) TestRegisterAndLogin() {
	suite.registerUser("alice")

	// 重复注册
	w := suite.request("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	suite.Equal(http.StatusConflict, w.Code)

	// 正确登录
	w = suite.request("POST", "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	suite.Equal(http.StatusOK, w.Code)

	// 错误密码
	w = suite.request("POST", "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrongpassword",
	})
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *APITestSuite) TestRegisterValidation() {
	// 缺少密码
	w := suite.request("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "bob",
	})
	suite.Equal(http.StatusBadRequest, w.Code)

	// 用户名太短
	w = suite.request("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "ab",
		"password": "password123",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestProfileRequiresAuth() {
	w := suite.request("GET", "/api/v1/auth/profile", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	token := suite.registerUser("alice")
	w = suite.request("GET", "/api/v1/auth/profile", token, nil)
	suite.Equal(http.StatusOK, w.Code)

	user := suite.decode(w)["user"].(map[string]interface{})
	suite.Equal("alice", user["username"])
}

func (suite *APITestSuite) TestTokenRefresh() {
	w := suite.request("POST", "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	refresh := suite.decode(w)["refresh_token"].(string)

	w = suite.request("POST", "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": refresh,
	})
	suite.Equal(http.StatusOK, w.Code)
	suite.NotEmpty(suite.decode(w)["access_token"])

	// 无效令牌
	w = suite.request("POST", "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": "garbage",
	})
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *APITestSuite) TestLobbyFlow() {
	owner := suite.registerUser("alice")
	member := suite.registerUser("bob")

	lobbyID := suite.createLobby(owner, "勇者的地牢")

	// 列表
	w := suite.request("GET", "/api/v1/lobbies", owner, nil)
	suite.Equal(http.StatusOK, w.Code)
	lobbies := suite.decode(w)["lobbies"].([]interface{})
	suite.Len(lobbies, 1)

	// 成员加入
	w = suite.request("POST", fmt.Sprintf("/api/v1/lobbies/%d/join", lobbyID), member, nil)
	suite.Equal(http.StatusOK, w.Code)

	// 重复加入冲突
	w = suite.request("POST", fmt.Sprintf("/api/v1/lobbies/%d/join", lobbyID), member, nil)
	suite.Equal(http.StatusConflict, w.Code)

	// 成员准备
	w = suite.request("PUT", fmt.Sprintf("/api/v1/lobbies/%d/ready", lobbyID), member, map[string]bool{"ready": true})
	suite.Equal(http.StatusOK, w.Code)

	// 查询大厅
	w = suite.request("GET", fmt.Sprintf("/api/v1/lobbies/%d", lobbyID), member, nil)
	suite.Equal(http.StatusOK, w.Code)
	lobby := suite.decode(w)["lobby"].(map[string]interface{})
	suite.Len(lobby["players"], 2)
}

func (suite *APITestSuite) TestGameStartFlow() {
	owner := suite.registerUser("alice")
	member := suite.registerUser("bob")

	lobbyID := suite.createLobby(owner, "开局测试")
	w := suite.request("POST", fmt.Sprintf("/api/v1/lobbies/%d/join", lobbyID), member, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	// 非房主不能开局
	w = suite.request("POST", "/api/v1/games", member, map[string]uint{"lobby_id": lobbyID})
	suite.Equal(http.StatusForbidden, w.Code)

	// 房主开局
	w = suite.request("POST", "/api/v1/games", owner, map[string]uint{"lobby_id": lobbyID})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	g := suite.decode(w)["game"].(map[string]interface{})
	gameID := uint(g["id"].(float64))
	suite.Equal("BATTLE", g["phase"])
	suite.Len(g["players"], 2)

	// 重复开局冲突
	w = suite.request("POST", "/api/v1/games", owner, map[string]uint{"lobby_id": lobbyID})
	suite.Equal(http.StatusConflict, w.Code)

	// 按大厅查询对局
	w = suite.request("GET", fmt.Sprintf("/api/v1/lobbies/%d/game", lobbyID), member, nil)
	suite.Equal(http.StatusOK, w.Code)

	// 计划回合快照（开局后应存在）
	w = suite.request("GET", fmt.Sprintf("/api/v1/games/%d/planning", gameID), member, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.NotNil(suite.decode(w)["planning"])
}

func (suite *APITestSuite) TestInvalidIDParam() {
	token := suite.registerUser("alice")

	w := suite.request("GET", "/api/v1/lobbies/abc", token, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.request("GET", "/api/v1/games/0", token, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestNotFoundRoute() {
	w := suite.request("GET", "/api/v1/nothing", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
