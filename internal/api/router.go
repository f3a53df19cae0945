package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/card-dungeon/internal/game"
	"github.com/wfunc/card-dungeon/internal/middleware"
	"github.com/wfunc/card-dungeon/internal/repository"
	"github.com/wfunc/card-dungeon/internal/service"
	ws "github.com/wfunc/card-dungeon/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	authHandler    *AuthHandler
	lobbyHandler   *LobbyHandler
	gameHandler    *GameHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(
	db *gorm.DB,
	services *service.Services,
	gameService *game.GameService,
	hub *ws.Hub,
	log *zap.Logger,
) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:         engine,
		db:             db,
		authHandler:    NewAuthHandler(services.Auth),
		lobbyHandler:   NewLobbyHandler(services.Lobby),
		gameHandler:    NewGameHandler(gameService, repository.NewGameScoreRepository(db)),
		wsHandler:      NewWebSocketHandler(hub, log),
		authMiddleware: middleware.NewAuthMiddleware(services.Auth),
		log:            log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)

			// 需要认证的路由
			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.GET("/profile", r.authHandler.GetProfile)
			}
		}

		// 大厅相关路由（需要认证）
		lobbies := v1.Group("/lobbies")
		lobbies.Use(r.authMiddleware.RequireAuth())
		{
			lobbies.POST("", r.lobbyHandler.Create)
			lobbies.GET("", r.lobbyHandler.List)
			lobbies.GET("/:id", r.lobbyHandler.Get)
			lobbies.POST("/:id/join", r.lobbyHandler.Join)
			lobbies.POST("/:id/leave", r.lobbyHandler.Leave)
			lobbies.PUT("/:id/ready", r.lobbyHandler.SetReady)
			lobbies.GET("/:id/game", r.gameHandler.GetByLobby)
			lobbies.GET("/:id/scores", r.gameHandler.LobbyScores)
		}

		// 游戏相关路由（需要认证）。出牌、确认等实时操作走WebSocket
		games := v1.Group("/games")
		games.Use(r.authMiddleware.RequireAuth())
		{
			games.POST("", r.gameHandler.Start)
			games.GET("/:id", r.gameHandler.Get)
			games.GET("/:id/planning", r.gameHandler.GetPlanning)
			games.GET("/:id/reward", r.gameHandler.GetReward)
		}

		// 成绩相关路由（需要认证）
		scores := v1.Group("/scores")
		scores.Use(r.authMiddleware.RequireAuth())
		{
			scores.GET("/me", r.gameHandler.MyScores)
		}

		// 在线状态
		v1.GET("/online", r.wsHandler.OnlineCount)
	}

	// WebSocket路由（令牌通过query参数传递）
	r.engine.GET("/ws", r.authMiddleware.RequireAuth(), r.wsHandler.Connect)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
