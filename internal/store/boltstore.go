package store

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/boltdb/bolt"
)

var recordBucket = []byte("records")

// boltStore 把记录持久化到单文件 bolt 数据库，跨进程重启仍然有效，
// 对应移动端原型里的持久 KV 存储。值编码为 `relPath \n unix 过期秒`。
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore 打开（或创建）bolt 记录库文件。
func NewBoltStore(path string) (RecordStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开记录库失败: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化记录库失败: %w", err)
	}

	return &boltStore{db: db, now: time.Now}, nil
}

func (s *boltStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var (
		relPath string
		found   bool
	)
	// 过期条目在读路径里顺带删除，因此这里用写事务。
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(recordBucket)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}

		value, expireAt, ok := decodeRecord(raw)
		if !ok || !s.now().Before(expireAt) {
			return bucket.Delete([]byte(key))
		}

		relPath = value
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return relPath, found, nil
}

func (s *boltStore) Set(ctx context.Context, key, relPath string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	expireAt := s.now().Add(ttl)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Put([]byte(key), encodeRecord(relPath, expireAt))
	})
}

func (s *boltStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Delete([]byte(key))
	})
}

func (s *boltStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(recordBucket)
		return err
	})
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

func encodeRecord(relPath string, expireAt time.Time) []byte {
	return []byte(relPath + "\n" + strconv.FormatInt(expireAt.Unix(), 10))
}

func decodeRecord(raw []byte) (relPath string, expireAt time.Time, ok bool) {
	idx := bytes.LastIndexByte(raw, '\n')
	if idx < 0 {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(string(raw[idx+1:]), 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return string(raw[:idx]), time.Unix(unix, 0), true
}
