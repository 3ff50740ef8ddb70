package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/config"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/credits"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/dashboard"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/evidence"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/projects"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("failed to connect to mongo", zap.Error(err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal("failed to ping mongo", zap.Error(err))
	}
	db := client.Database(cfg.Mongo.Database)

	if err := users.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("failed to ensure user indexes", zap.Error(err))
	}
	if err := projects.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("failed to ensure project indexes", zap.Error(err))
	}
	if err := credits.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("failed to ensure credit ledger indexes", zap.Error(err))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		logger.Fatal("failed to load aws config", zap.Error(err))
	}
	s3Client := s3.NewFromConfig(awsCfg)
	store := evidence.NewStore(s3Client, cfg.Storage, logger)

	// Repositories
	userRepo := users.NewRepository(db)
	projectRepo := projects.NewRepository(db)
	ledger := credits.NewLedger(db)
	dashRepo := dashboard.NewRepository(db)

	// Services
	authService := auth.NewService(userRepo, cfg.Auth, logger)
	projectService := projects.NewService(projectRepo, userRepo, ledger, store, logger)
	userService := users.NewService(userRepo, projectRepo, store, logger)
	dashService := dashboard.NewService(dashRepo, userRepo, logger)

	// Handlers
	authHandler := auth.NewHandler(authService, logger)
	projectHandler := projects.NewHandler(projectService, logger)
	userHandler := users.NewHandler(userService, principalResolver, logger)
	dashHandler := dashboard.NewHandler(dashService, logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	api := router.Group("/api")
	auth.RegisterRoutes(api, authHandler, authService)
	projects.RegisterRoutes(api, projectHandler, authService)
	users.RegisterRoutes(api, userHandler,
		authService.RequireAuth(), auth.RequireRoles(users.RoleAdmin))
	dashboard.RegisterRoutes(api, dashHandler, authService)

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("failed to disconnect mongo", zap.Error(err))
	}
	logger.Info("server stopped")
}

// principalResolver adapts the auth context lookup for the users handler.
func principalResolver(c *gin.Context) (string, string) {
	p := auth.FromContext(c)
	if p == nil {
		return "", ""
	}
	return p.ID, p.Role
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil && level != "" {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
