package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PreferenceRepository 保存每个浏览器客户端的偏好，实现 plugin.PreferenceStore。
type PreferenceRepository interface {
	// GetPlugin 返回已保存的插件 ID，没有保存时返回空字符串。
	GetPlugin(ctx context.Context, clientID string) (string, error)
	SetPlugin(ctx context.Context, clientID, pluginID string) error
}

type redisPreferenceRepository struct {
	redisClient *redis.Client
}

// NewPreferenceRepository 创建一个新的 PreferenceRepository 实例。
func NewPreferenceRepository(redisClient *redis.Client) PreferenceRepository {
	return &redisPreferenceRepository{redisClient: redisClient}
}

func pluginKey(clientID string) string {
	return fmt.Sprintf("client:%s:plugin", clientID)
}

func (r *redisPreferenceRepository) GetPlugin(ctx context.Context, clientID string) (string, error) {
	id, err := r.redisClient.Get(ctx, pluginKey(clientID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get plugin preference: %w", err)
	}
	return id, nil
}

// SetPlugin 不设置过期时间，与浏览器本地存储的语义一致。
func (r *redisPreferenceRepository) SetPlugin(ctx context.Context, clientID, pluginID string) error {
	if err := r.redisClient.Set(ctx, pluginKey(clientID), pluginID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set plugin preference: %w", err)
	}
	return nil
}
