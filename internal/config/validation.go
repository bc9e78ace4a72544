package config

import (
	"errors"
	"strings"
)

var supportedRecordStores = map[string]struct{}{
	"memory": {},
	"bolt":   {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("CacheTTL", "必须大于 0")
	}
	if g.DownloadTimeout.DurationValue() <= 0 {
		return newFieldError("DownloadTimeout", "必须大于 0")
	}

	storeKind := strings.ToLower(strings.TrimSpace(g.RecordStore))
	if _, ok := supportedRecordStores[storeKind]; !ok {
		return newFieldError("RecordStore", "仅支持 memory|bolt")
	}
	c.Global.RecordStore = storeKind

	for _, name := range g.QueryParamNames {
		if strings.TrimSpace(name) == "" {
			return newFieldError("QueryParamNames", "参数名不能为空")
		}
	}

	return nil
}
