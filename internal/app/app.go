package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/internal/controller"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/pkg/database"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/monitoring"
	"quiz_platform_backend/pkg/security"
	"quiz_platform_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	repositories *repositories
	services     *services
	controllers  *controllers

	configMutex     sync.RWMutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user         *repository.UserRepository
	quiz         *repository.QuizRepository
	attempt      *repository.AttemptRepository
	notification *repository.NotificationRepository
}

type services struct {
	auth         *service.AuthService
	storage      *service.StorageService
	user         *service.UserService
	quiz         *service.QuizService
	attempt      *service.AttemptService
	notification *service.NotificationService
	dashboard    *service.DashboardService
}

type controllers struct {
	health       *controller.HealthController
	auth         *controller.AuthController
	user         *controller.UserController
	quiz         *controller.QuizController
	attempt      *controller.AttemptController
	notification *controller.NotificationController
	dashboard    *controller.DashboardController
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.MigrateOnly {
		logger.Log.Info("Migration completed, exiting (migrate-only mode)")
		os.Exit(0)
	}

	// Redis 不可用时降级为直查数据库，不阻止启动
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, quiz template cache disabled", zap.Error(err))
		rdb = nil
	}

	monitoring.Init()

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	app.repositories = app.initRepositories()
	app.services = app.initServices()
	app.controllers = app.initControllers()

	app.Router = gin.Default()
	app.setupMiddlewares()
	app.registerRoutes()

	if cfg.Storage.Type == "local" {
		app.Router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) initRepositories() *repositories {
	return &repositories{
		user:         repository.NewUserRepository(a.DB),
		quiz:         repository.NewQuizRepository(a.DB),
		attempt:      repository.NewAttemptRepository(a.DB),
		notification: repository.NewNotificationRepository(a.DB),
	}
}

func (a *App) initServices() *services {
	s := &services{
		auth:         service.NewAuthService(a.repositories.user, a.Config),
		storage:      service.NewStorageService(a.Config),
		user:         service.NewUserService(a.repositories.user),
		quiz:         service.NewQuizService(a.repositories.quiz, a.Redis),
		notification: service.NewNotificationService(a.repositories.notification),
		dashboard:    service.NewDashboardService(a.repositories.quiz, a.repositories.attempt),
	}
	// 答题引擎经由 QuizService 读题（带缓存），而不是直接读仓库
	s.attempt = service.NewAttemptService(s.quiz, a.repositories.attempt)
	return s
}

func (a *App) initControllers() *controllers {
	return &controllers{
		health:       controller.NewHealthController(a.DB),
		auth:         controller.NewAuthController(a.services.auth),
		user:         controller.NewUserController(a.services.user, a.services.storage),
		quiz:         controller.NewQuizController(a.services.quiz, a.services.storage, a.services.user, a.services.notification),
		attempt:      controller.NewAttemptController(a.services.attempt, a.services.quiz, a.services.notification),
		notification: controller.NewNotificationController(a.services.notification),
		dashboard:    controller.NewDashboardController(a.services.dashboard),
	}
}

func (a *App) setupMiddlewares() {
	a.Router.Use(security.CORS(a.Config.CORS.AllowedOrigins))
	a.Router.Use(security.Secure())

	if a.Config.RateLimit.MaxRequests > 0 {
		window := time.Duration(a.Config.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		a.Router.Use(security.RateLimiter(a.Config.RateLimit.MaxRequests, window))
	}

	if a.Config.Tracing.Enabled {
		if _, err := tracing.InitTracer("quiz-platform", a.Config.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Warn("Failed to initialize tracer", zap.Error(err))
		} else {
			a.Router.Use(tracing.GinMiddleware())
		}
	}

	a.Router.Use(monitoring.MetricsMiddleware())
}

// RegisterConfigCallback 注册配置热更新回调
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configMutex.Lock()
	defer a.configMutex.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 应用新配置并触发回调
func (a *App) ReloadConfig(newCfg *config.Config) {
	a.configMutex.Lock()
	a.Config = newCfg
	callbacks := make([]func(*config.Config), len(a.configCallbacks))
	copy(callbacks, a.configCallbacks)
	a.configMutex.Unlock()

	for _, cb := range callbacks {
		cb(newCfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exited")
}
