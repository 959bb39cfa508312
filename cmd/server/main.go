package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointsystem/internal/config"
	"pointsystem/internal/handler"
	"pointsystem/internal/infrastructure/cache"
	"pointsystem/internal/infrastructure/database"
	"pointsystem/internal/infrastructure/lock"
	"pointsystem/internal/infrastructure/mq"
	"pointsystem/internal/job"
	"pointsystem/internal/repository"
	"pointsystem/internal/repository/memory"
	"pointsystem/internal/service"
	"pointsystem/pkg/idgen"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化流水号生成器
	if err := idgen.Init(cfg.Ledger.WorkerID); err != nil {
		log.Fatalf("初始化ID生成器失败: %v", err)
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 存储
	var (
		points    service.PointStore
		histories service.HistoryStore
		users     job.UserLister
	)
	var outboxSender *job.OutboxSender

	switch cfg.Ledger.Storage {
	case config.StorageMySQL:
		db, err := database.InitMySQL(&cfg.MySQL)
		if err != nil {
			log.Fatalf("初始化 MySQL 失败: %v", err)
		}

		topic := ""
		if len(cfg.Kafka.Brokers) > 0 {
			producer, err := mq.InitKafka(&cfg.Kafka)
			if err != nil {
				log.Fatalf("初始化 Kafka 失败: %v", err)
			}
			defer producer.Close()

			topic = cfg.Kafka.Topic.PointHistory
			outboxSender = job.NewOutboxSender(
				repository.NewOutboxRepository(db),
				producer,
				cfg.Job.OutboxInterval,
				cfg.Job.BatchSize,
				cfg.Job.MaxRetryCount,
			)
		}

		pointRepo := repository.NewPointRepository(db)
		points, users = pointRepo, pointRepo
		histories = repository.NewHistoryRepository(db, topic)

	case config.StorageMemory:
		pointStore, historyStore, err := memory.Open(cfg.Ledger.WALPath)
		if err != nil {
			log.Fatalf("初始化内存存储失败: %v", err)
		}
		defer historyStore.Close()

		points, users = pointStore, pointStore
		histories = historyStore
		log.Printf("[Memory] 内存存储已就绪, wal=%q", cfg.Ledger.WALPath)
	}

	// 账户锁
	var guard service.Guard = lock.NewKeyedMutex()
	if cfg.Ledger.Guard == config.GuardRedis {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("初始化 Redis 失败: %v", err)
		}
		defer redisClient.Close()

		guard = lock.NewRedisGuard(redisClient, lock.RedisGuardConfig{
			TTL:           cfg.Ledger.LockTTL,
			RetryInterval: cfg.Ledger.LockRetryInterval,
			MaxRetries:    cfg.Ledger.LockMaxRetries,
		})
	}

	pointService := service.NewPointService(points, histories, guard)

	// 启动后台任务
	if outboxSender != nil {
		go outboxSender.Start(ctx)
	}

	auditJob := job.NewLedgerAuditJob(users, pointService, cfg.Job.AuditInterval)
	go auditJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(pointService, cfg.Server.Mode)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
