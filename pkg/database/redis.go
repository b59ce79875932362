package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"plugin-chat-go/internal/config"
	"plugin-chat-go/pkg/log"
)

// RDB 保存客户端偏好与 Kafka 任务的重试计数。
var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接，连接失败时退出程序。
func InitRedis(cfg config.RedisConfig) {
	RDB = redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}
	log.Info("Redis client connected successfully")
}
