package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/card-dungeon/internal/game"
	"github.com/wfunc/card-dungeon/internal/middleware"
	"github.com/wfunc/card-dungeon/internal/repository"
)

// GameHandler 游戏处理器。实时操作走WebSocket，这里提供开局和状态查询
type GameHandler struct {
	gameService *game.GameService
	scoreRepo   repository.GameScoreRepository
}

// NewGameHandler 创建游戏处理器
func NewGameHandler(gameService *game.GameService, scoreRepo repository.GameScoreRepository) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		scoreRepo:   scoreRepo,
	}
}

// Start 房主开始游戏
func (h *GameHandler) Start(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req struct {
		LobbyID uint `json:"lobby_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	g, err := h.gameService.StartGame(c.Request.Context(), req.LobbyID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.gameService.StartPlanningRound(c.Request.Context(), g.ID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"game": g})
}

// Get 获取游戏状态
func (h *GameHandler) Get(c *gin.Context) {
	gameID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	g, err := h.gameService.GetGame(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": g})
}

// GetByLobby 根据大厅ID获取游戏
func (h *GameHandler) GetByLobby(c *gin.Context) {
	lobbyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	g, err := h.gameService.GetGameByLobbyID(c.Request.Context(), lobbyID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": g})
}

// GetPlanning 获取当前计划回合状态
func (h *GameHandler) GetPlanning(c *gin.Context) {
	gameID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	snapshot := h.gameService.PlanningState(gameID)
	if snapshot == nil {
		c.JSON(http.StatusOK, gin.H{"planning": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"planning": snapshot})
}

// GetReward 获取当前奖励阶段状态
func (h *GameHandler) GetReward(c *gin.Context) {
	gameID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	snapshot := h.gameService.RewardState(gameID)
	if snapshot == nil {
		c.JSON(http.StatusOK, gin.H{"reward": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward": snapshot})
}

// LobbyScores 获取大厅的终局成绩
func (h *GameHandler) LobbyScores(c *gin.Context) {
	lobbyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	scores, err := h.scoreRepo.FindByLobbyID(c.Request.Context(), lobbyID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

// MyScores 获取当前用户的历史成绩
func (h *GameHandler) MyScores(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pagination := repository.NewPagination(page, pageSize)

	scores, err := h.scoreRepo.FindByUserID(c.Request.Context(), userID, pagination)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scores":     scores,
		"pagination": pagination,
	})
}
