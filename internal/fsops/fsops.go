package fsops

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FS 是缓存编排层消费的文件系统原语集合，抽象出来便于测试注入替身。
type FS interface {
	// Exists 判断 path 是否存在且为普通文件。
	Exists(path string) bool

	// DeleteFile 删除文件，文件不存在视为成功。
	DeleteFile(path string) error

	// CopyFile 把 src 原子地复制到 dst，必要时创建父目录。
	CopyFile(src, dst string) error

	// DownloadFile 拉取 url 内容并原子地写入 dst。
	DownloadFile(ctx context.Context, url, dst string, opts DownloadOptions) error

	// CleanDir 递归清空目录内容但保留目录本身。
	CleanDir(path string) error

	// DirInfo 统计目录下的文件数量与总字节数。
	DirInfo(path string) (DirStats, error)
}

// DirStats 汇总一个缓存根目录的占用情况。
type DirStats struct {
	FileCount  int   `json:"files"`
	TotalBytes int64 `json:"bytes"`
}

// New 返回基于本地磁盘的 FS 实现，整个进程复用一份实例。
func New() FS {
	return &osFS{locks: make(map[string]*pathLock)}
}

// osFS 对同一目标路径的写入通过 pathLock 串行化，避免并发 materialize
// 同一文件时临时文件互相践踏。
type osFS struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func (f *osFS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (f *osFS) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *osFS) CopyFile(src, dst string) error {
	unlock := f.lockPath(dst)
	defer unlock()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeAtomic(context.Background(), dst, in)
}

func (f *osFS) CleanDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (f *osFS) DirInfo(path string) (DirStats, error) {
	var stats DirStats
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.FileCount++
		stats.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return DirStats{}, err
	}
	return stats, nil
}

// DefaultCacheDir 返回系统级缓存目录下的专属子目录，解析失败时退回临时目录。
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "imgstash")
}

func (f *osFS) lockPath(path string) func() {
	f.mu.Lock()
	lock := f.locks[path]
	if lock == nil {
		lock = &pathLock{}
		f.locks[path] = lock
	}
	lock.refs++
	f.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		f.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(f.locks, path)
		}
		f.mu.Unlock()
	}
}

// writeAtomic 通过临时文件 + rename 落盘，失败时清理临时文件。
func writeAtomic(ctx context.Context, dst string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(dst), ".imgstash-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, dst); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
