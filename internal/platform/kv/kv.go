package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store 是服务端全部可变状态的唯一出口：会话、锁、冷却、配额计数、
// 统计数据、高考题目集、图片指纹和排行榜缓存都以键值对形式存放在这里。
//
// 接口故意只提供带TTL的get/put/delete和按前缀分页列举，不暴露任何
// 事务或compare-and-swap能力。上层的"锁"因此都是带TTL的建议性标记，
// 崩溃持有者的锁靠TTL自行过期，这是设计上接受的有界风险。
type Store interface {
	// Get 返回键对应的值。键不存在时返回 ("", false, nil)。
	Get(ctx context.Context, key string) (string, bool, error)
	// Put 写入键值。ttl为0表示永不过期。
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete 删除键。键不存在不算错误。
	Delete(ctx context.Context, key string) error
	// List 按前缀分页列举键名，cursor为0表示从头开始，返回的cursor为0表示结束。
	// 只有排行榜的全量重建路径需要这个操作。
	List(ctx context.Context, prefix string, cursor uint64, limit int64) ([]string, uint64, error)
}

// redisStore 是Store的Redis实现。所有键都带有统一的命名空间前缀。
type redisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisStore 基于已初始化的Redis客户端创建Store。
// namespace为空时键名不加前缀。
func NewRedisStore(rdb *redis.Client, namespace string) Store {
	if namespace != "" {
		namespace += ":"
	}
	return &redisStore{rdb: rdb, namespace: namespace}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取键 %s 失败: %w", key, err)
	}
	return val, true, nil
}

func (s *redisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("写入键 %s 失败: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("删除键 %s 失败: %w", key, err)
	}
	return nil
}

func (s *redisStore) List(ctx context.Context, prefix string, cursor uint64, limit int64) ([]string, uint64, error) {
	keys, next, err := s.rdb.Scan(ctx, cursor, s.namespace+prefix+"*", limit).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("按前缀 %s 列举键失败: %w", prefix, err)
	}
	// 去掉命名空间前缀，调用方只关心逻辑键名
	if s.namespace != "" {
		for i, k := range keys {
			keys[i] = k[len(s.namespace):]
		}
	}
	return keys, next, nil
}
