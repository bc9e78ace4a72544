package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "http://example.com/a.png", "bucket/key.png", time.Hour); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	rel, ok, err := s.Get(ctx, "http://example.com/a.png")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if !ok || rel != "bucket/key.png" {
		t.Fatalf("应命中写入的记录: ok=%v rel=%s", ok, rel)
	}

	if err := s.Remove(ctx, "http://example.com/a.png"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "http://example.com/a.png"); ok {
		t.Fatalf("删除后不应命中")
	}
}

func TestMemStoreExpiry(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("过期记录应视为不存在")
	}
}

func TestMemStoreFlush(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, key, "rel/"+key, time.Hour); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("清空失败: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Fatalf("清空后 %s 不应命中", key)
		}
	}
}

func TestBoltStoreRoundTrip(t *testing.T) {
	s := newTestBoltStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "http://example.com/a.png", "bucket/key.png", time.Hour); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	rel, ok, err := s.Get(ctx, "http://example.com/a.png")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if !ok || rel != "bucket/key.png" {
		t.Fatalf("应命中写入的记录: ok=%v rel=%s", ok, rel)
	}

	if err := s.Remove(ctx, "http://example.com/a.png"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "http://example.com/a.png"); ok {
		t.Fatalf("删除后不应命中")
	}
}

func TestBoltStoreExpiredRecordIsAbsentAndDeleted(t *testing.T) {
	s := newTestBoltStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	bs := s.(*boltStore)
	bs.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("过期记录应视为不存在: ok=%v err=%v", ok, err)
	}

	// 回拨时钟后仍然不命中，说明过期条目已被读路径清理。
	bs.now = time.Now
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("过期条目应已被删除")
	}
}

func TestBoltStoreFlush(t *testing.T) {
	s := newTestBoltStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "a", "rel/a", time.Hour); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("清空失败: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("清空后不应命中")
	}
	if err := s.Set(ctx, "b", "rel/b", time.Hour); err != nil {
		t.Fatalf("清空后应可继续写入: %v", err)
	}
}

func newTestBoltStore(t *testing.T) RecordStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("创建记录库失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
