package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// ResultCache 按过期时间缓存接口结果（搜索结果等）
type ResultCache struct {
	store *cache.Cache
}

// NewResultCache ttl 为默认过期时间，清理间隔为 ttl 的两倍
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{store: cache.New(ttl, 2*ttl)}
}

// Get 获取缓存值
func (c *ResultCache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set 使用默认过期时间写入
func (c *ResultCache) Set(key string, value interface{}) {
	c.store.SetDefault(key, value)
}

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// TTLCache 容量有限的 LRU 缓存，条目带有效期（查询向量等）
type TTLCache[T any] struct {
	storage *lru.Cache[string, CacheItem[T]]
	ttl     time.Duration
}

// NewTTLCache size 是最大缓存条数，ttl 是数据有效期
func NewTTLCache[T any](size int, ttl time.Duration) *TTLCache[T] {
	if size <= 0 {
		size = 1
	}
	// lru.New 是线程安全的，size > 0 时不会返回错误
	c, _ := lru.New[string, CacheItem[T]](size)
	return &TTLCache[T]{
		storage: c,
		ttl:     ttl,
	}
}

// Set LRU 中 Add 会自动处理更新
func (c *TTLCache[T]) Set(key string, value T) {
	c.storage.Add(key, CacheItem[T]{
		Value:     value,
		ExpiredAt: time.Now().Add(c.ttl),
	})
}

// Get 带过期检查
func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}

	if time.Now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}

	return item.Value, true
}

// Len 当前条数（含未清理的过期条目）
func (c *TTLCache[T]) Len() int {
	return c.storage.Len()
}
