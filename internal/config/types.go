package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imgstash/imgstash/internal/cachekey"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"336h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有缓存操作共享同一份参数。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	StoragePath        string   `mapstructure:"StoragePath"`
	CacheTTL           Duration `mapstructure:"CacheTTL"`
	RecordStore        string   `mapstructure:"RecordStore"`
	RecordDBPath       string   `mapstructure:"RecordDBPath"`
	DownloadTimeout    Duration `mapstructure:"DownloadTimeout"`
	AllowSelfSignedSSL bool     `mapstructure:"AllowSelfSignedSSL"`
	UseQueryParams     bool     `mapstructure:"UseQueryParams"`
	QueryParamNames    []string `mapstructure:"QueryParamNames"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// QueryPolicy 把全局配置翻译成键派生层的查询参数策略。
// QueryParamNames 非空时优先于 UseQueryParams 开关。
func (g GlobalConfig) QueryPolicy() cachekey.QueryPolicy {
	if len(g.QueryParamNames) > 0 {
		return cachekey.QueryPolicy{Names: g.QueryParamNames}
	}
	return cachekey.QueryPolicy{All: g.UseQueryParams}
}
