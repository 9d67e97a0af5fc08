// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单与对话进行中标记等需要快速访问的数据
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"cybertrace-ops/internal/config"
)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient 使用已有客户端创建 RedisCache
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== JWT 黑名单 ====================
// 用于实现 Token 强制失效（登出）功能

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}

	// TTL 设置为 Token 的剩余有效期，过期后自动删除（因为 Token 本身也过期了）
	return c.client.Set(ctx, blacklistKey(tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// JWT 验证中间件调用
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	// EXISTS 命令返回存在的 Key 数量
	return c.client.Exists(ctx, blacklistKey(tokenHash)).Val() > 0
}

// ==================== 对话进行中标记 ====================
// 一轮对话流式输出期间存在，结束或超时后消失

// MarkChatStreaming 标记对话正在生成回复
// ttl 兜底：进程异常退出时标记也会自动过期
func (c *RedisCache) MarkChatStreaming(ctx context.Context, chatID string, ttl time.Duration) error {
	return c.client.Set(ctx, streamingKey(chatID), time.Now().Unix(), ttl).Err()
}

// ClearChatStreaming 清除对话进行中标记
func (c *RedisCache) ClearChatStreaming(ctx context.Context, chatID string) error {
	return c.client.Del(ctx, streamingKey(chatID)).Err()
}

// IsChatStreaming 对话是否正在生成回复
func (c *RedisCache) IsChatStreaming(ctx context.Context, chatID string) bool {
	return c.client.Exists(ctx, streamingKey(chatID)).Val() > 0
}

func blacklistKey(tokenHash string) string {
	return "jwt:blacklist:" + tokenHash
}

func streamingKey(chatID string) string {
	return fmt.Sprintf("chat:%s:streaming", chatID)
}
