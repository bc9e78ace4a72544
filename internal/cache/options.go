package cache

import (
	"time"

	"github.com/imgstash/imgstash/internal/cachekey"
	"github.com/imgstash/imgstash/internal/config"
)

// Options 是单次缓存操作的配置。零值字段在 merge 时回退到进程级默认值；
// 默认值对象构造后只读，逐字段覆盖永远作用在副本上。
type Options struct {
	// Headers 在下载时附带的请求头。
	Headers map[string]string

	// TTL 是记录的新鲜期，0 表示使用默认值。
	TTL time.Duration

	// Query 覆盖查询参数参与缓存键的策略；nil 表示使用默认策略。
	Query *cachekey.QueryPolicy

	// CacheLocation 覆盖缓存根目录，空字符串表示使用默认目录。
	CacheLocation string

	// AllowSelfSignedSSL 允许自签名证书，按「任一方开启即开启」合并。
	AllowSelfSignedSSL bool

	// DownloadTimeout 单次下载超时，0 表示使用默认值。
	DownloadTimeout time.Duration
}

// OptionsFromConfig 把全局配置翻译为进程级默认 Options。
func OptionsFromConfig(g config.GlobalConfig) Options {
	policy := g.QueryPolicy()
	return Options{
		TTL:                g.CacheTTL.DurationValue(),
		Query:              &policy,
		CacheLocation:      g.StoragePath,
		AllowSelfSignedSSL: g.AllowSelfSignedSSL,
		DownloadTimeout:    g.DownloadTimeout.DurationValue(),
	}
}

// merge 把调用方给的覆盖项叠加到默认值副本上，调用方未指定的字段保持默认。
func (defaults Options) merge(override Options) Options {
	merged := defaults
	if override.Headers != nil {
		merged.Headers = override.Headers
	}
	if override.TTL > 0 {
		merged.TTL = override.TTL
	}
	if override.Query != nil {
		merged.Query = override.Query
	}
	if override.CacheLocation != "" {
		merged.CacheLocation = override.CacheLocation
	}
	if override.AllowSelfSignedSSL {
		merged.AllowSelfSignedSSL = true
	}
	if override.DownloadTimeout > 0 {
		merged.DownloadTimeout = override.DownloadTimeout
	}
	if merged.TTL <= 0 {
		merged.TTL = config.DefaultTTL
	}
	return merged
}

func (o Options) queryPolicy() cachekey.QueryPolicy {
	if o.Query == nil {
		return cachekey.QueryPolicy{}
	}
	return *o.Query
}
