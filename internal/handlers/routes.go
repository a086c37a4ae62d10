package handlers

import (
	"net/http"

	"casino-backend/internal/middleware"
	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	JWT     *services.JWTService
	Engine  *services.GameEngine
	Store   services.Store
	Records RecordReader
	Hub     *WebSocketHub
	Log     *logrus.Entry
}

func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Log.WithField("component", "http")), middleware.CORS())

	gameHandler := NewGameHandler(d.Engine, d.Store)
	userHandler := NewUserHandler(d.Store)
	wsHandler := NewWebSocketHandler(d.Hub, d.Store, d.Log.WithField("component", "websocket"))
	callbackHandler := NewCallbackHandler(d.Engine, d.Records, d.Log.WithField("component", "callbacks"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(d.JWT), middleware.RateLimitMiddleware(d.Store))
	{
		protected.GET("/ws", wsHandler.HandleWebSocket)

		user := protected.Group("/user")
		{
			user.GET("/balance", userHandler.GetBalance)
			user.GET("/transactions", userHandler.GetTransactions)
		}

		blackjack := protected.Group("/blackjack")
		{
			blackjack.GET("/cluster-key", gameHandler.ClusterKey)
			blackjack.GET("/history", gameHandler.GetGameHistory)

			blackjack.GET("/games", gameHandler.GetActiveGames)
			blackjack.POST("/games", gameHandler.BeginGame)
			blackjack.GET("/games/:id", gameHandler.GetGame)
			blackjack.POST("/games/:id/deal", gameHandler.Step(d.Engine.Deal))
			blackjack.POST("/games/:id/hit", gameHandler.Step(d.Engine.Hit))
			blackjack.POST("/games/:id/double", gameHandler.Step(d.Engine.DoubleDown))
			blackjack.POST("/games/:id/stand", gameHandler.Step(d.Engine.Stand))
			blackjack.POST("/games/:id/dealer", gameHandler.DealerPlay)
			blackjack.POST("/games/:id/resolve", gameHandler.Step(d.Engine.Resolve))
		}
	}

	service := router.Group("/")
	service.Use(middleware.ServiceAuthMiddleware(d.JWT, d.Log.WithField("component", "service-auth")))
	{
		service.POST("/callbacks/computations/:handle", callbackHandler.Settle)
		service.GET("/internal/records/:key", callbackHandler.GetRecord)
	}

	return router
}
