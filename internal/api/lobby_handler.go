package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/middleware"
	"github.com/wfunc/card-dungeon/internal/repository"
	"github.com/wfunc/card-dungeon/internal/service"
)

// LobbyHandler 大厅处理器
type LobbyHandler struct {
	lobbyService service.LobbyService
}

// NewLobbyHandler 创建大厅处理器
func NewLobbyHandler(lobbyService service.LobbyService) *LobbyHandler {
	return &LobbyHandler{
		lobbyService: lobbyService,
	}
}

// Create 创建大厅
func (h *LobbyHandler) Create(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req service.CreateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	lobby, err := h.lobbyService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"lobby": lobby})
}

// List 列出等待中的大厅
func (h *LobbyHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pagination := repository.NewPagination(page, pageSize)

	lobbies, err := h.lobbyService.ListOpen(c.Request.Context(), pagination)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lobbies":    lobbies,
		"pagination": pagination,
	})
}

// Get 获取大厅详情
func (h *LobbyHandler) Get(c *gin.Context) {
	lobbyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	lobby, err := h.lobbyService.Get(c.Request.Context(), lobbyID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lobby": lobby})
}

// Join 加入大厅
func (h *LobbyHandler) Join(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	lobbyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	lobby, err := h.lobbyService.Join(c.Request.Context(), lobbyID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lobby": lobby})
}

// Leave 离开大厅
func (h *LobbyHandler) Leave(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	lobbyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	lobby, err := h.lobbyService.Leave(c.Request.Context(), lobbyID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lobby": lobby})
}

// SetReady 设置准备状态
func (h *LobbyHandler) SetReady(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	lobbyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Ready bool `json:"ready"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	lobby, err := h.lobbyService.SetReady(c.Request.Context(), lobbyID, userID, req.Ready)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lobby": lobby})
}

// parseIDParam 解析路径中的ID参数
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    int(apperrors.ErrInvalidParam),
			Message: "无效的ID参数",
		})
		return 0, false
	}
	return uint(id), true
}
