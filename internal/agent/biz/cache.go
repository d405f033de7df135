package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/agent-x/internal/model"
	"github.com/kart-io/agent-x/pkg/utils/json"
)

// QueryCache 查询结果缓存。
// redis 客户端为 nil 时所有操作静默降级为未命中，服务无缓存也可用。
type QueryCache struct {
	client    *goredis.Client
	ttl       time.Duration
	keyPrefix string
	enabled   bool
}

// NewQueryCache 创建查询缓存。
func NewQueryCache(client *goredis.Client, ttl time.Duration, keyPrefix string, enabled bool) *QueryCache {
	if keyPrefix == "" {
		keyPrefix = "agent:query:"
	}
	return &QueryCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		enabled:   enabled && client != nil,
	}
}

// Enabled 返回缓存是否可用。
func (c *QueryCache) Enabled() bool {
	return c != nil && c.enabled
}

// cacheKey 生成缓存键。同一会话内相同问题命中同一键。
func (c *QueryCache) cacheKey(query, sessionID string) string {
	hash := sha256.Sum256([]byte(sessionID + "\x00" + query))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

// Get 查询缓存，未命中或缓存不可用时返回 (nil, false)。
func (c *QueryCache) Get(ctx context.Context, query, sessionID string) (*model.QueryResult, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key := c.cacheKey(query, sessionID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("查询缓存读取失败", "key", key, "error", err)
		}
		return nil, false
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		// 缓存内容损坏，删除后按未命中处理
		logger.Warnw("查询缓存内容损坏，已删除", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false
	}
	return &result, true
}

// Set 写入缓存，失败只记录日志。
func (c *QueryCache) Set(ctx context.Context, query, sessionID string, result *model.QueryResult) {
	if !c.Enabled() || result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("查询缓存序列化失败", "error", err)
		return
	}

	key := c.cacheKey(query, sessionID)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warnw("查询缓存写入失败", "key", key, "error", err)
	}
}

// Clear 清空本前缀下的全部缓存键。
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	var deleted int
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("删除缓存键失败: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("扫描缓存键失败: %w", err)
	}

	logger.Infow("查询缓存已清空", "deleted", deleted)
	return nil
}

// GetStats 返回缓存统计信息。
func (c *QueryCache) GetStats(ctx context.Context) map[string]interface{} {
	if !c.Enabled() {
		return map[string]interface{}{"enabled": false}
	}
	stats := map[string]interface{}{
		"enabled":    true,
		"key_prefix": c.keyPrefix,
	}

	stats["ttl_seconds"] = c.ttl.Seconds()

	var keys int
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err == nil {
		stats["keys"] = keys
	}
	return stats
}
