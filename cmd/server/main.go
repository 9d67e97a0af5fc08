// Package main 是服务端的入口点
// 子命令: serve（默认）、migrate、backfill-titles
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"cybertrace-ops/internal/cache"
	"cybertrace-ops/internal/config"
	"cybertrace-ops/internal/database"
	"cybertrace-ops/internal/handler"
	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/internal/repository"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/internal/toolserver"
	"cybertrace-ops/internal/websocket"
	"cybertrace-ops/pkg/jwt"
	"cybertrace-ops/pkg/logger"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:          "cybertrace-server",
	Short:        "CybertraceAI-Ops chat server",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE:  runMigrate,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill-titles",
	Short: "Derive titles for chats that still carry a generic title",
	RunE:  runBackfill,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./configs", "配置文件目录")
	backfillCmd.Flags().Bool("dry-run", false, "只输出将要写入的标题")
	rootCmd.AddCommand(serveCmd, migrateCmd, backfillCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.Setup(cfg.Log), nil
}

// openDatabase 连接数据库并执行迁移
func openDatabase(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, err
	}
	log.Info("database connected", "driver", cfg.Database.Driver)

	log.Info("running database migrations")
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", "error", err)
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)
	log.Info("database migrations completed")
	return nil
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	chatService := service.NewChatService(repository.NewChatRepository(db), repository.NewMessageRepository(db), nil, log)
	report, err := chatService.BackfillTitles(cmd.Context(), dryRun)
	if err != nil {
		return err
	}
	for _, t := range report.Titles {
		fmt.Fprintf(cmd.OutOrStdout(), "would set title: %s\n", t)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated=%d skipped=%d failed=%d dry_run=%t\n",
		report.Updated, report.Skipped, report.Failed, dryRun)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	// 初始化数据库
	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}
	defer redisCache.Close()

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化模型与工具服务器连接器
	model, err := service.NewModel(ctx, cfg.AI)
	if err != nil {
		return err
	}
	var dialer toolserver.Dialer
	if cfg.ToolServer.Configured() {
		d := toolserver.NewDialer(cfg.ToolServer)
		dialer = d
		log.Info("tool server configured", "transport", d.Transport())
	} else {
		log.Warn("no tool server configured, only local tools are available")
	}
	connector := toolserver.NewConnector(dialer, toolserver.OptionsFromConfig(cfg.ToolServer), log)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	userService := service.NewUserService(userRepo)
	chatService := service.NewChatService(chatRepo, messageRepo, redisCache, log)
	conversation := service.NewConversationService(chatService, connector, model, redisCache, service.TurnOptions{
		SystemPrompt: service.SystemPrompt(cfg.AI),
		MaxSteps:     cfg.AI.MaxSteps,
		Temperature:  cfg.AI.Temperature,
		MaxDuration:  cfg.AI.MaxDuration,
	}, log)

	// 初始化 WebSocket Hub，标题与删除通知经由 Hub 推送
	wsHub := websocket.NewHub(conversation, log)
	chatService.SetNotifier(wsHub)
	wsHandler := websocket.NewHandler(wsHub, jwtService, redisCache, cfg.Server.CORS)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Server.CORS))

	handler.RegisterRoutes(router, jwtService, redisCache, handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Chat:         handler.NewChatHandler(chatService),
		Conversation: handler.NewConversationHandler(conversation, log),
		Health:       handler.NewHealthHandler(db, redisCache),
	})
	wsHandler.RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// 不设置 WriteTimeout：SSE 响应的时长由 ai.max_duration 约束
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wsHub.Run(gctx)
	})
	g.Go(func() error {
		log.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server exited")
	return nil
}
