package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/handler"
	"github.com/quizcraft/quizcraft-backend/internal/middleware"
	"github.com/quizcraft/quizcraft-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz    *handler.QuizHandler
	Attempt *handler.AttemptHandler
	User    *handler.UserHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// ─── 1. Quiz Group (JWT) ───────────────────────────────────────────
	quizzes := router.Group("/api/v1/quizzes")
	quizzes.Use(middleware.RequireUser(auth))
	{
		quizzes.GET("", handlers.Quiz.ListQuizzes)
		quizzes.POST("", handlers.Quiz.CreateQuiz)
		quizzes.GET("/:id", handlers.Quiz.GetQuiz)
		quizzes.DELETE("/:id", handlers.Quiz.DeleteQuiz)

		// Attempt lifecycle, rate limited per user.
		attempts := quizzes.Group("/:id")
		attempts.Use(limiter.Middleware())
		{
			attempts.POST("/attempt", handlers.Attempt.StartAttempt)
			attempts.POST("/answer", handlers.Attempt.SubmitAnswer)
			attempts.POST("/complete", handlers.Attempt.CompleteAttempt)
		}
	}

	// ─── 2. User Group ─────────────────────────────────────────────────
	users := router.Group("/api/v1/users")
	{
		// Public, short-lived cache.
		users.GET("/leaderboard",
			middleware.CacheControl(cfg.LeaderboardCacheTTL),
			handlers.User.GetLeaderboard,
		)

		me := users.Group("")
		me.Use(middleware.RequireUser(auth))
		{
			me.GET("/profile", handlers.User.GetProfile)
			me.PUT("/profile", handlers.User.UpdateProfile)
			me.GET("/attempts", handlers.User.ListAttempts)
			me.GET("/attempts/:id", handlers.User.GetAttempt)
			me.GET("/quizzes", handlers.User.ListQuizzes)
		}
	}

	// ─── 3. WebSocket Group (query token auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWS(auth))
	{
		ws.GET("/quizzes/:id/room", handlers.WS.QuizRoom)
	}

	return router
}
