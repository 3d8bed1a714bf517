package router

import (
	"campusconnect/config"
	"campusconnect/internal/auth"
	"campusconnect/internal/handler"
	"campusconnect/internal/metrics"
	"campusconnect/internal/middleware"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"
	"campusconnect/internal/ws"
	"campusconnect/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the long-lived clients built by main.
type Deps struct {
	DB       *gorm.DB
	Cloud    cloudinary.Client
	Pinner   handler.FilePinner
	Hub      *ws.Hub
	Nonces   auth.NonceStore
	Chain    service.PaymentChain
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Limiter  *middleware.IPRateLimiter
	Log      *zap.Logger
}

func Setup(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(d.Metrics.Middleware())
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter))
	}

	// Repositories
	userRepo := repository.NewUserRepository(d.DB)
	groupRepo := repository.NewGroupRepository(d.DB)
	sessionRepo := repository.NewStudySessionRepository(d.DB)
	resourceRepo := repository.NewResourceRepository(d.DB)
	projectRepo := repository.NewProjectRepository(d.DB)
	paymentRepo := repository.NewPaymentRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)

	// Services
	authSvc := service.NewAuthService(&cfg.JWT, userRepo, d.Nonces)
	notifSvc := service.NewNotificationService(notificationRepo, d.Hub, d.Log.Named("notifications"))
	paymentSvc := service.NewPaymentService(service.PaymentStores{
		Payments:  paymentRepo,
		Users:     userRepo,
		Groups:    groupRepo,
		Resources: resourceRepo,
	}, d.Chain, notifSvc, d.Metrics, d.Log.Named("payments"))

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, d.Log)
	meHandler := handler.NewMeHandler(userRepo, paymentSvc, d.Cloud, d.Log)
	notificationHandler := handler.NewNotificationHandler(notifSvc, d.Log)
	groupHandler := handler.NewGroupHandler(groupRepo, notifSvc, d.Log)
	sessionHandler := handler.NewSessionHandler(sessionRepo, groupRepo, notifSvc, d.Log)
	resourceHandler := handler.NewResourceHandler(resourceRepo, groupRepo, d.Pinner, notifSvc, d.Metrics, d.Log)
	projectHandler := handler.NewProjectHandler(projectRepo, notifSvc, d.Log)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, groupRepo, resourceRepo, d.Log)
	healthHandler := handler.NewHealthHandler(d.DB)

	authMw := middleware.AuthRequired(&cfg.JWT)
	profileMw := middleware.ProfileRequired(userRepo)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/nonce", authHandler.Nonce)
			authGroup.POST("/wallet", authHandler.Wallet)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/profile", meHandler.GetProfile)
			me.POST("/profile", meHandler.CreateProfile) // onboarding, before ProfileRequired can pass
			me.PATCH("/profile", meHandler.UpdateProfile)
			me.POST("/avatar", meHandler.UploadAvatar)
			me.POST("/wallet", meHandler.CreateWallet)
			me.GET("/payments", meHandler.Payments)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.PUT("/notifications/read", notificationHandler.MarkAllRead)
		}

		community := api.Group("")
		community.Use(authMw, profileMw)
		{
			community.GET("/groups", groupHandler.List)
			community.POST("/groups", groupHandler.Create)
			community.GET("/groups/:id", groupHandler.Get)
			community.POST("/groups/:id/join", groupHandler.Join)

			community.GET("/sessions", sessionHandler.List)
			community.POST("/sessions", sessionHandler.Create)
			community.POST("/sessions/:id/join", sessionHandler.Join)

			community.GET("/resources", resourceHandler.List)
			community.POST("/resources", resourceHandler.Upload)
			community.POST("/resources/:id/download", resourceHandler.Download)

			community.GET("/projects", projectHandler.List)
			community.POST("/projects", projectHandler.Create)
			community.POST("/projects/:id/join", projectHandler.Join)
			community.PATCH("/projects/:id/status", projectHandler.UpdateStatus)

			community.GET("/payments/:id", paymentHandler.Get)
			community.POST("/payments/feature", paymentHandler.Feature)
			community.POST("/payments/bump", paymentHandler.Bump)
			community.POST("/payments/advanced-filters", paymentHandler.AdvancedFilters)
			community.POST("/payments/premium-group", paymentHandler.PremiumGroup)
		}
		api.GET("/payments/prices", paymentHandler.Prices)
	}

	r.GET("/ws/notifications", ws.UpgradeNotifications(&cfg.JWT, d.Hub, d.Log))
	r.GET("/healthz", healthHandler.Healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
