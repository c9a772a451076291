package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/cohortly/attendance-api/api/swagger"
	"github.com/cohortly/attendance-api/internal/handler"
	"github.com/cohortly/attendance-api/internal/middleware"
	"github.com/cohortly/attendance-api/internal/repository"
	"github.com/cohortly/attendance-api/internal/service"
	"github.com/cohortly/attendance-api/pkg/cache"
	"github.com/cohortly/attendance-api/pkg/config"
	"github.com/cohortly/attendance-api/pkg/database"
	"github.com/cohortly/attendance-api/pkg/logger"
	corsmiddleware "github.com/cohortly/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cohortly/attendance-api/pkg/middleware/requestid"
)

// @title Cohort Attendance API
// @version 1.0.0
// @description QR check-in, attendance and deposit ledger service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	location, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid attendance timezone", "timezone", cfg.Attendance.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheStore service.CacheStore
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient)
		defer cacheRepo.Close() //nolint:errcheck
		cacheStore = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, metricsSvc, cfg.Cache.SessionTTL, logr, cfg.Cache.Enabled)

	memberRepo := repository.NewMemberRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	tokenRepo := repository.NewQRTokenRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	authSvc := service.NewAuthService(adminRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	tokenSvc := service.NewQRTokenService(tokenRepo, logr, cfg.Attendance.QRTokenTTL)
	sessionSvc := service.NewSessionService(sessionRepo, cohortRepo, attendanceRepo, tokenSvc, cacheSvc, validate, logr, cfg.Attendance.CurrentGeneration)
	attendanceSvc := service.NewAttendanceService(tokenRepo, sessionRepo, memberRepo, cohortRepo, attendanceRepo, validate, logr, cfg.Attendance.CurrentGeneration, location)
	memberSvc := service.NewMemberService(memberRepo, cohortRepo, validate, logr, cfg.Attendance.CurrentGeneration, cfg.Attendance.InitialDeposit)
	depositSvc := service.NewDepositService(depositRepo, cohortRepo, metricsSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	tokenHandler := handler.NewQRTokenHandler(tokenSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, metricsSvc)
	memberHandler := handler.NewMemberHandler(memberSvc)
	depositHandler := handler.NewDepositHandler(depositSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Member-facing routes: no auth, members interact via the app.
	api.POST("/auth/login", authHandler.Login)
	api.GET("/sessions", sessionHandler.List)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.POST("/attendances/check-in", attendanceHandler.CheckIn)
	api.GET("/members/:id", memberHandler.Get)
	api.GET("/members/:id/attendances", attendanceHandler.ListByMember)
	api.GET("/members/:id/attendances/summary", attendanceHandler.Summary)

	// Backoffice routes require an admin token.
	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc))
	{
		admin.POST("/sessions", sessionHandler.Create)
		admin.PUT("/sessions/:id", sessionHandler.Update)
		admin.POST("/sessions/:id/cancel", sessionHandler.Cancel)
		admin.GET("/sessions/:id/attendances", attendanceHandler.ListBySession)
		admin.GET("/sessions/:id/report", attendanceHandler.Report)
		admin.POST("/sessions/:id/qr", tokenHandler.Issue)
		admin.PUT("/qr-tokens/:id/renew", tokenHandler.Renew)
		admin.GET("/admin/sessions", sessionHandler.ListAdmin)

		admin.POST("/attendances", attendanceHandler.Register)
		admin.PUT("/attendances/:id", attendanceHandler.Correct)

		admin.GET("/members", memberHandler.List)
		admin.POST("/members", memberHandler.Create)
		admin.POST("/members/:id/withdraw", memberHandler.Withdraw)

		admin.GET("/cohort-members", memberHandler.Roster)
		admin.POST("/cohort-members", memberHandler.Enroll)
		admin.GET("/cohort-members/:id", memberHandler.MembershipDetail)
		admin.GET("/cohort-members/:id/deposits", depositHandler.History)
		admin.POST("/cohort-members/:id/deposits/adjustments", depositHandler.Adjust)
		admin.GET("/cohort-members/:id/deposits/export", depositHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
