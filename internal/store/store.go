package store

import (
	"context"
	"time"
)

// RecordStore 维护「规约 URL → 相对路径」的带过期映射。实现必须把内部已
// 过期的条目当作不存在处理，并顺手清掉自己的存量数据；调用方只按键读写。
type RecordStore interface {
	// Get 返回键对应的相对路径。条目不存在或已过期时 ok 为 false。
	Get(ctx context.Context, key string) (relPath string, ok bool, err error)

	// Set 写入一条记录，过期时间从当前时刻加 ttl 计算。
	Set(ctx context.Context, key, relPath string, ttl time.Duration) error

	// Remove 删除指定键，键不存在不算错误。
	Remove(ctx context.Context, key string) error

	// Flush 清空全部记录。
	Flush(ctx context.Context) error

	// Close 释放底层资源。
	Close() error
}
