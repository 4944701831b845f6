package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tourhive/internal/api/auth"
	"tourhive/internal/api/middleware"
	"tourhive/internal/config"
	"tourhive/internal/model"
	"tourhive/internal/pkg/cache"
	"tourhive/internal/pkg/metrics"
	"tourhive/internal/pkg/notify"
	"tourhive/internal/pkg/password"
	"tourhive/internal/pkg/ratelimit"
	"tourhive/internal/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、密码哈希池以及 Gin 路由引擎。
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *gorm.DB
	rdb        *redis.Client
	router     *gin.Engine
	hasher     *password.Hasher
	tokens     *token.Manager
	auth       *auth.Handler
	userStore  auth.Store
	limiter    *ratelimit.Limiter
	statsCache *cache.Cache
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 启动密码哈希 worker 池
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Tour{}, &model.Review{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	// 初始化 Prometheus 指标
	metrics.InitMetrics(cfg.App.HashWorkers)

	hasher := password.NewHasher(logger, cfg.Security.BcryptCost, cfg.App.HashWorkers, cfg.App.HashQueueCapacity)
	hasher.Start(ctx)

	tokens := token.NewManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	mailer := notify.NewEmailSender(&cfg.Email, logger)
	userStore := auth.NewStore(db)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		rdb:        rdb,
		router:     r,
		hasher:     hasher,
		tokens:     tokens,
		auth:       auth.NewHandler(userStore, hasher, tokens, mailer, cfg, logger),
		userStore:  userStore,
		limiter:    ratelimit.NewRedisLimiter(rdb, cfg.App.RateLimit, cfg.App.RateBurst),
		statsCache: cache.New(rdb, cfg.App.StatsCacheTTL),
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭哈希池、数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.hasher != nil {
		s.hasher.Shutdown()
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	api := s.router.Group("/api/v1")
	api.Use(middleware.RateLimit(s.limiter, s.logger))

	// 凭证生命周期（公开）
	api.POST("/users/signup", s.auth.Signup)
	api.POST("/users/login", s.auth.Login)
	api.POST("/users/forgotPassword", s.auth.ForgotPassword)
	api.PATCH("/users/resetPassword/:token", s.auth.ResetPassword)

	// 公开的旅行团读取接口
	api.GET("/tours", s.handleListTours)
	api.GET("/tours/top-5-cheap", s.handleTopTours)
	api.GET("/tours/stats", s.handleTourStats)
	api.GET("/tours/:id", s.handleGetTour)
	api.GET("/tours/:id/reviews", s.handleListReviews)

	authed := api.Group("/")
	authed.Use(middleware.Auth(s.tokens, s.userStore, s.logger))

	authed.PATCH("/users/updateMyPassword", s.auth.UpdatePassword)
	authed.GET("/users/me", s.handleMe)
	authed.PATCH("/users/updateMe", s.handleUpdateMe)
	authed.DELETE("/users/deleteMe", s.handleDeleteMe)

	authed.POST("/tours/:id/reviews", middleware.RequireRoles(model.RoleUser), s.handleCreateReview)

	tourAdmin := authed.Group("/")
	tourAdmin.Use(middleware.RequireRoles(model.RoleAdmin, model.RoleLeadGuide))
	tourAdmin.POST("/tours", s.handleCreateTour)
	tourAdmin.PATCH("/tours/:id", s.handleUpdateTour)
	tourAdmin.DELETE("/tours/:id", s.handleDeleteTour)

	userAdmin := authed.Group("/")
	userAdmin.Use(middleware.RequireRoles(model.RoleAdmin))
	userAdmin.GET("/users", s.handleListUsers)
	userAdmin.GET("/users/:id", s.handleGetUser)
	userAdmin.PATCH("/users/:id", s.handleUpdateUser)
	userAdmin.DELETE("/users/:id", s.handleDeleteUser)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func getUserID(c *gin.Context) uint {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, ok := v.(uint)
	if !ok {
		return 0
	}
	return id
}
