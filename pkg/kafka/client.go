// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"plugin-chat-go/internal/config"
	"plugin-chat-go/pkg/log"
	"plugin-chat-go/pkg/tasks"
)

// MaxAttempts 是单条消息的最大处理次数（含进程重启前的尝试），达到后提交 offset 放弃该任务。
const MaxAttempts = 3

// retryBackoff 是同一条消息两次处理之间的等待时间。
const retryBackoff = 2 * time.Second

// TaskProcessor 处理从 Kafka 中取出的分析任务。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.AnalyticsTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 刷出未发送的消息并关闭生产者。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// ProduceTask 发送一个分析任务到 Kafka。
func ProduceTask(ctx context.Context, task tasks.AnalyticsTask) error {
	if producer == nil {
		return fmt.Errorf("kafka producer is not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Key()),
		Value: taskBytes,
	})
}

// StartConsumer 启动一个 Kafka 消费者来处理分析任务，阻塞直到 ctx 结束或读取失败。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var task tasks.AnalyticsTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(r, m)
			continue
		}

		if !processWithRetry(ctx, processor, rdb, task, messageKey(m), retryBackoff) {
			// ctx 已结束，不提交，重启后从该消息继续
			break
		}
		commit(r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

func commit(r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(context.Background(), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

// messageKey 唯一标识一条 Kafka 消息，同一任务内容的多次发送互不影响。
func messageKey(m kafka.Message) string {
	return fmt.Sprintf("%s:%d:%d", m.Topic, m.Partition, m.Offset)
}

func attemptsKey(msgKey string) string {
	return fmt.Sprintf("kafka:attempts:%s", msgKey)
}

// processWithRetry 在当前循环内重试处理一条消息，直到成功或累计失败达到 MaxAttempts。
// 失败次数记录在 Redis 中，进程在提交前重启时会接着之前的次数计数。
// 返回 false 表示 ctx 已结束，消息不应提交。
func processWithRetry(ctx context.Context, processor TaskProcessor, rdb *redis.Client, task tasks.AnalyticsTask, msgKey string, backoff time.Duration) bool {
	local := 0
	for {
		err := processor.Process(ctx, task)
		if err == nil {
			_ = rdb.Del(context.Background(), attemptsKey(msgKey)).Err()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		local++
		log.Errorf("处理分析任务失败: message=%s, type=%s, Error: %v", msgKey, task.Type, err)

		giveUp, cntErr := recordFailure(context.Background(), rdb, msgKey)
		if cntErr != nil {
			log.Warnf("记录任务失败次数出错: %v", cntErr)
			giveUp = local >= MaxAttempts
		}
		if giveUp {
			log.Errorf("分析任务多次失败(>=%d)，提交 offset 终止重试: message=%s", MaxAttempts, msgKey)
			_ = rdb.Del(context.Background(), attemptsKey(msgKey)).Err()
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}
}

// recordFailure 使用 Redis 累计消息的失败次数，达到 MaxAttempts 时返回 true。
func recordFailure(ctx context.Context, rdb *redis.Client, msgKey string) (bool, error) {
	key := attemptsKey(msgKey)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= MaxAttempts, nil
}
