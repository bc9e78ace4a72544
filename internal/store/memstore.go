package store

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// memStore 基于 ttlcache 的进程内记录库，进程退出后记录即失效。
// 适合单机部署或测试；需要跨重启保留记录时使用 bolt 实现。
type memStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemStore 构建内存记录库。TTL 以写入时刻为锚点，命中不续期，
// 与磁盘文件的新鲜度语义保持一致。
func NewMemStore() RecordStore {
	cache := ttlcache.New[string, string](
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &memStore{cache: cache}
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	item := s.cache.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

func (s *memStore) Set(ctx context.Context, key, relPath string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Set(key, relPath, ttl)
	return nil
}

func (s *memStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

func (s *memStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.DeleteAll()
	return nil
}

func (s *memStore) Close() error {
	s.cache.Stop()
	return nil
}
