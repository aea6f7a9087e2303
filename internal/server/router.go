package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/auth"
	"github.com/lumenmfb/backend/internal/config"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/http/handlers"
	"github.com/lumenmfb/backend/internal/http/middleware"
	"github.com/lumenmfb/backend/internal/observability"
	"github.com/lumenmfb/backend/internal/ratelimit"
	"github.com/lumenmfb/backend/internal/version"
	"github.com/lumenmfb/backend/internal/ws"
)

// maxJSONBody bounds every JSON request; uploads set their own limit.
const maxJSONBody = 1 << 20

type Dependencies struct {
	Checks             map[string]handlers.Pinger
	Features           handlers.Features
	AuthHandler        *handlers.AuthHandler
	ApplicationHandler *handlers.ApplicationHandler
	AccountHandler     *handlers.AccountHandler
	UploadHandler      *handlers.UploadHandler
	AssistantHandler   *handlers.AssistantHandler
	AdminHandler       *handlers.AdminHandler
	WSHandler          *ws.Handler
	LocalFilesHandler  *handlers.LocalFilesHandler
	JWTManager         *auth.JWTManager
	AILimiter          ratelimit.Limiter
}

var (
	chainRoles    = []staff.Role{staff.RoleCredit, staff.RoleAudit, staff.RoleCOO}
	readerRoles   = []staff.Role{staff.RoleCredit, staff.RoleAudit, staff.RoleCOO, staff.RoleManagingDirector}
	accountRoles  = []staff.Role{staff.RoleOperations, staff.RoleManagingDirector}
	allStaffRoles = []staff.Role{staff.RoleCredit, staff.RoleAudit, staff.RoleCOO, staff.RoleOperations, staff.RoleManagingDirector}
)

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(observability.GinMetrics())
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
		corsCfg.AllowCredentials = true
		corsCfg.AddAllowHeaders("Authorization")
		corsCfg.AddExposeHeaders("Content-Disposition")
		r.Use(cors.New(corsCfg))
	}

	health := handlers.NewHealthHandler(deps.Checks)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, deps.Features)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	r.GET("/v1/meta", meta.GetMeta)
	r.GET("/v1/products", handlers.ListProducts)
	if deps.LocalFilesHandler != nil {
		r.GET("/files/:bucket/*key", deps.LocalFilesHandler.Serve)
	}

	if deps.AuthHandler != nil && deps.JWTManager != nil {
		requireAuth := middleware.RequireAuth(deps.JWTManager)
		bodyLimit := middleware.RequestBodyLimit(maxJSONBody)
		aiLimit := middleware.RateLimit(deps.AILimiter, logger)

		authGroup := r.Group("/v1/auth", bodyLimit)
		authGroup.POST("/login", deps.AuthHandler.Login)
		authGroup.POST("/refresh", deps.AuthHandler.Refresh)
		authGroup.POST("/logout", deps.AuthHandler.Logout)
		authGroup.GET("/me", requireAuth, deps.AuthHandler.Me)

		v1 := r.Group("/v1", requireAuth)
		admin := v1.Group("/admin", middleware.RequireRole(allStaffRoles...))

		if h := deps.ApplicationHandler; h != nil {
			loans := v1.Group("/loan-applications")
			loans.GET("/eligibility", h.Eligibility)
			loans.POST("", bodyLimit, middleware.RequireRole(staff.RoleCustomer), h.Submit)
			loans.GET("", h.ListMine)
			loans.GET("/:id", h.Get)
			loans.GET("/:id/document", h.Document)

			readers := admin.Group("", middleware.RequireRole(readerRoles...))
			readers.GET("/loan-applications", h.AdminList)
			readers.GET("/loan-applications/export.csv", h.ExportCSV)
			readers.GET("/loan-applications/:id", h.Get)
			readers.GET("/loan-applications/:id/document", h.Document)
			readers.POST("/loan-applications/:id/risk-analysis", aiLimit, h.RiskAnalysis)
			readers.GET("/stats", h.Stats)

			deciders := admin.Group("/loan-applications/:id", bodyLimit, middleware.RequireRole(chainRoles...))
			deciders.POST("/approve", h.Approve)
			deciders.POST("/decline", h.Decline)
			deciders.POST("/flag", h.Flag)

			admin.POST("/loan-applications", bodyLimit, middleware.RequireRole(staff.RoleCredit), h.Submit)
		}

		if h := deps.AccountHandler; h != nil {
			v1.POST("/account-applications", bodyLimit, middleware.RequireRole(staff.RoleCustomer), h.Submit)
			v1.GET("/account-applications/mine", h.Mine)

			ops := admin.Group("/account-applications", middleware.RequireRole(accountRoles...))
			ops.GET("", h.AdminList)
			ops.GET("/:id", h.AdminGet)
			ops.POST("/:id/approve", bodyLimit, h.Approve)
			ops.POST("/:id/decline", bodyLimit, h.Decline)
		}

		if h := deps.UploadHandler; h != nil {
			v1.POST("/uploads", h.Upload)
			v1.GET("/uploads/signed-url", h.SignedURL)
		}

		if h := deps.AssistantHandler; h != nil {
			v1.POST("/assistant/chat", bodyLimit, aiLimit, h.Chat)
		}

		if h := deps.AdminHandler; h != nil {
			admin.GET("/actions", h.ListActions)

			md := admin.Group("", middleware.RequireRole(staff.RoleManagingDirector))
			md.GET("/settings", h.GetSettings)
			md.PUT("/settings", bodyLimit, h.UpdateSettings)
			md.GET("/roles", h.ListRoles)
			md.POST("/roles", bodyLimit, h.AssignRole)
			md.POST("/roles/:userId/deactivate", h.DeactivateRole)
			md.POST("/roles/:userId/activate", h.ActivateRole)
			md.POST("/roles/:userId/unlock", h.UnlockRole)
			md.POST("/maintenance/cleanup", h.RunCleanup)
			md.POST("/maintenance/purge", bodyLimit, h.Purge)
		}

		if deps.WSHandler != nil {
			v1.GET("/ws", deps.WSHandler.HandleWebSocket)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid := c.GetString(middleware.CtxUserID); uid != "" {
			attrs = append(attrs, "user_id", uid)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
			logger.Error("request", attrs...)
			return
		}
		logger.Info("request", attrs...)
	}
}
