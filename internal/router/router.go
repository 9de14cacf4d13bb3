package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/handler"
	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/response"
	"github.com/lnrs/assessment-portal/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam      *handler.ExamHandler
	Session   *handler.SessionHandler
	Code      *handler.CodeHandler
	Recording *handler.RecordingHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// codeLimiter throttles code runs per candidate; its Run loop is owned by the
// caller.
func SetupRouter(
	authService *service.AuthService,
	registry *engine.Registry,
	codeLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": registry.Len(),
		})
	})

	// ─── 1. Candidate Group (JWT) ──────────────────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.Brotli(),
		middleware.RequireCandidateJWT(authService),
		middleware.NoStore(),
	)
	{
		candidateAPI.GET("/me", handlers.Exam.GetProfile)
		candidateAPI.GET("/exams", handlers.Exam.ListExams)
		candidateAPI.POST("/exams/:exam_id/sessions", handlers.Session.StartSession)

		session := candidateAPI.Group("/sessions/:session_id")
		session.Use(middleware.LoadSession(registry))
		{
			session.GET("", handlers.Session.GetSession)
			session.GET("/paper", handlers.Session.GetPaper)
			session.POST("/navigate", handlers.Session.Navigate)
			session.PUT("/answers", handlers.Session.SaveAnswer)
			session.POST("/visibility", handlers.Session.Visibility)
			session.POST("/submit", handlers.Session.Submit)

			session.POST("/code/run", codeLimiter.Middleware(), handlers.Code.RunCode)
			session.POST("/code/submit", handlers.Code.SubmitCode)

			session.POST("/recording", handlers.Recording.UploadChunk)
		}
	}

	// ─── 2. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", middleware.LoadSession(registry), handlers.WS.SessionStream)
	}

	return router
}
