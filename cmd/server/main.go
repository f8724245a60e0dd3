package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/api"
	"github.com/MoliStudio/moli-dictation-backend/internal/leaderboard"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/config"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/database"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/gateway"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/storage"
	"github.com/MoliStudio/moli-dictation-backend/internal/question"
	"github.com/MoliStudio/moli-dictation-backend/internal/submission"
	"github.com/MoliStudio/moli-dictation-backend/internal/user"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 1. 加载 .env（不存在时静默忽略）与配置文件
	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("配置加载失败，无法启动: %v", err))
	}

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		panic(fmt.Sprintf("日志初始化失败: %v", err))
	}
	defer log.Sync()

	// 2. 初始化基础设施：Redis、对象存储、AI网关
	database.InitRedis(cfg.Redis)
	store := kv.NewRedisStore(database.RDB, cfg.Redis.Namespace)

	ctx := context.Background()
	objects, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		panic(fmt.Sprintf("对象存储初始化失败: %v", err))
	}

	ai, err := gateway.NewClient(cfg.Gemini, log)
	if err != nil {
		panic(fmt.Sprintf("AI网关初始化失败: %v", err))
	}

	// 3. 装配各领域服务
	users := user.NewService(store, log)
	questions := question.NewService(store)
	board := leaderboard.NewService(store, log)

	limits := submission.DefaultLimits()
	if cfg.Limits.SubmitCooldownSeconds > 0 {
		limits.Cooldown = time.Duration(cfg.Limits.SubmitCooldownSeconds) * time.Second
	}
	if cfg.Limits.DailyChapterAttempts > 0 {
		limits.DailyAttempts = cfg.Limits.DailyChapterAttempts
	}
	if cfg.Limits.WeeklyChapterAttempts > 0 {
		limits.WeeklyAttempts = cfg.Limits.WeeklyChapterAttempts
	}
	if cfg.Limits.MaxImageKB > 0 {
		limits.MaxImageBytes = cfg.Limits.MaxImageKB << 10
	}
	pipeline := submission.NewPipeline(store, objects, ai, questions, board, log, limits)

	handlers := &api.Handlers{
		Users:       users,
		User:        user.NewHandler(users, board),
		Question:    question.NewHandler(questions),
		Submission:  submission.NewHandler(pipeline, limits),
		Leaderboard: leaderboard.NewHandler(board),
	}

	// 4. 启动HTTP服务
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.MaxMultipartMemory = limits.MaxImageBytes + (1 << 20)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r, handlers)

	log.Info("服务器已准备就绪", "address", cfg.Server.Address)
	if err := r.Run(cfg.Server.Address); err != nil {
		panic("Failed to start server: " + err.Error())
	}
}
