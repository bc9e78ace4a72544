package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imgstash/imgstash/internal/cachekey"
	"github.com/imgstash/imgstash/internal/fsops"
	"github.com/imgstash/imgstash/internal/logging"
	"github.com/imgstash/imgstash/internal/store"
)

// Stats 暴露缓存根目录的占用统计。
type Stats = fsops.DirStats

// materializeFunc 在目标路径上产出缓存文件（下载或复制）。
// nil 表示探测模式：命中/未命中照常判定，但未命中时不产出文件也不写记录。
type materializeFunc func(ctx context.Context, absPath string) error

// Manager 把记录库与文件系统协作方编排成四个公开操作，所有可变状态
// 都是调用局部的；defaults 构造后只读。
type Manager struct {
	store    store.RecordStore
	fs       fsops.FS
	defaults Options
	logger   *logrus.Logger
}

// New 构建缓存编排器。defaults 通常来自 OptionsFromConfig，之后不再修改。
func New(recordStore store.RecordStore, fs fsops.FS, defaults Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		store:    recordStore,
		fs:       fs,
		defaults: defaults,
		logger:   logger,
	}
}

// IsCacheable 是纯谓词：只认大小写不敏感的 http:// 与 https:// 前缀，不做任何 I/O。
func IsCacheable(rawURL string) bool {
	lowered := strings.ToLower(rawURL)
	return strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://")
}

// ProbeCached 报告 URL 当前是否已缓存。未命中是合法的布尔结果而非错误；
// 探测本身保持只读，只会顺带清理已经失效的残留文件。
func (m *Manager) ProbeCached(ctx context.Context, rawURL string, opts Options) (bool, error) {
	_, hit, err := m.resolve(ctx, rawURL, opts, nil)
	if err != nil {
		return false, err
	}
	return hit, nil
}

// FetchAndCache 确保 URL 已缓存：命中直接返回现有文件路径，
// 否则下载到派生路径并写入新记录。
func (m *Manager) FetchAndCache(ctx context.Context, rawURL string, opts Options) (string, error) {
	path, hit, err := m.resolve(ctx, rawURL, opts, func(ctx context.Context, absPath string) error {
		merged := m.defaults.merge(opts)
		return m.fs.DownloadFile(ctx, rawURL, absPath, fsops.DownloadOptions{
			Headers:     merged.Headers,
			Timeout:     merged.DownloadTimeout,
			InsecureTLS: merged.AllowSelfSignedSSL,
		})
	})
	if err != nil {
		return "", err
	}
	m.logger.WithFields(logging.CacheFields("fetch", rawURL, hit)).Debug("cache_resolve")
	return path, nil
}

// SeedAndCache 用本地文件预填充缓存，免去一次网络下载。
func (m *Manager) SeedAndCache(ctx context.Context, rawURL, localPath string, opts Options) (string, error) {
	path, hit, err := m.resolve(ctx, rawURL, opts, func(ctx context.Context, absPath string) error {
		return m.fs.CopyFile(localPath, absPath)
	})
	if err != nil {
		return "", err
	}
	m.logger.WithFields(logging.CacheFields("seed", rawURL, hit)).Debug("cache_resolve")
	return path, nil
}

// Evict 删除单条缓存：先移除记录，再尽力删除对应文件（文件缺失不算错误）。
func (m *Manager) Evict(ctx context.Context, rawURL string, opts Options) error {
	if !IsCacheable(rawURL) {
		return ErrNotCacheable
	}
	merged := m.defaults.merge(opts)

	canonical, err := cachekey.Canonicalize(rawURL, merged.queryPolicy())
	if err != nil {
		return err
	}
	if err := m.store.Remove(ctx, canonical); err != nil {
		return err
	}

	rel, err := cachekey.DeriveRelativePath(rawURL, merged.queryPolicy())
	if err != nil {
		return err
	}
	if err := m.fs.DeleteFile(m.absPath(merged, rel)); err != nil {
		return err
	}

	m.logger.WithFields(logging.CacheFields("evict", rawURL, false)).Debug("cache_evict")
	return nil
}

// ClearAll 清空整个记录库，然后递归清空缓存根目录。
func (m *Manager) ClearAll(ctx context.Context, opts Options) error {
	merged := m.defaults.merge(opts)
	if err := m.store.Flush(ctx); err != nil {
		return err
	}
	return m.fs.CleanDir(merged.CacheLocation)
}

// Inspect 返回缓存根目录的文件数与总字节数。
func (m *Manager) Inspect(ctx context.Context, opts Options) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	merged := m.defaults.merge(opts)
	return m.fs.DirInfo(merged.CacheLocation)
}

// resolve 是四个公开操作共享的对账流程：
//  1. scheme 校验；2. 合并选项；3. 规约 URL；4. 查记录并验证文件仍在；
//  5. 未命中时独立派生路径、清掉残留文件；6. 物化；7. 写新记录。
//
// 命中/未命中是显式的两分支判定，记录悬空与文件悬空都折叠进未命中分支
// 自愈，绝不上抛为错误。
func (m *Manager) resolve(ctx context.Context, rawURL string, opts Options, materialize materializeFunc) (string, bool, error) {
	if !IsCacheable(rawURL) {
		return "", false, ErrNotCacheable
	}
	merged := m.defaults.merge(opts)

	canonical, err := cachekey.Canonicalize(rawURL, merged.queryPolicy())
	if err != nil {
		return "", false, fmt.Errorf("规约 URL 失败: %w", err)
	}

	relFromStore, ok, err := m.store.Get(ctx, canonical)
	if err != nil {
		return "", false, err
	}
	if ok {
		abs := filepath.Join(merged.CacheLocation, filepath.FromSlash(relFromStore))
		if m.fs.Exists(abs) {
			return abs, true, nil
		}
		// 记录悬空：文件被外部删除，按未命中处理。
	}

	// 相对路径从 URL 重新派生，不信任可能已经失效的记录内容。
	rel, err := cachekey.DeriveRelativePath(rawURL, merged.queryPolicy())
	if err != nil {
		return "", false, err
	}
	abs := m.absPath(merged, rel)

	if err := m.fs.DeleteFile(abs); err != nil {
		return "", false, err
	}

	if materialize == nil {
		return abs, false, nil
	}

	if err := materialize(ctx, abs); err != nil {
		return "", false, &MaterializeError{URL: rawURL, Err: err}
	}

	if err := m.store.Set(ctx, canonical, rel.Join(), merged.TTL); err != nil {
		return "", false, err
	}
	return abs, false, nil
}

func (m *Manager) absPath(opts Options, rel cachekey.RelativePath) string {
	return filepath.Join(opts.CacheLocation, rel.Dir, rel.File)
}
