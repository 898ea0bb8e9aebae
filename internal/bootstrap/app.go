package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/milvusclient"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"lawassist/internal/config"
	"lawassist/internal/model"
	milvusClient "lawassist/internal/platform/milvus"
	mysqlClient "lawassist/internal/platform/mysql"
	rabbitmqClient "lawassist/internal/platform/rabbitmq"
	redisClient "lawassist/internal/platform/redis"
	"lawassist/internal/rag"
	"lawassist/internal/repository"
	"lawassist/internal/worker"
)

type App struct {
	Config     *config.Config
	MySQL      *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	Milvus     *milvusclient.Client
	Corpus     *rag.Store
	TurnWorker *worker.TurnPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Conversation{}, &model.Turn{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	milvusCli, err := milvusClient.New(ctx, cfg.Milvus.Address)
	if err != nil {
		return nil, err
	}
	corpus := rag.NewStore(milvusCli, cfg.Milvus.Collection, cfg.Milvus.Dimension)
	if err := corpus.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("prepare corpus collection failed: %w", err)
	}

	turnRepo := repository.NewTurnRepository(mysqlDB)
	turnWorker := worker.NewTurnPersistWorker(mqConn, turnRepo, cfg.RabbitMQ.TurnPersistQueue)
	if err := turnWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start turn worker failed: %w", err)
	}

	return &App{
		Config:     cfg,
		MySQL:      mysqlDB,
		Redis:      redisCli,
		MQConn:     mqConn,
		Milvus:     milvusCli,
		Corpus:     corpus,
		TurnWorker: turnWorker,
		StartedAt:  time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.TurnWorker != nil {
		a.TurnWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Milvus != nil {
		if err := a.Milvus.Close(context.Background()); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
