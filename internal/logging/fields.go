package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 提供缓存操作日志的公共字段，op 为操作名，hit 表示是否命中。
func CacheFields(op, url string, hit bool) logrus.Fields {
	return logrus.Fields{
		"action":    "cache",
		"op":        op,
		"url":       url,
		"cache_hit": hit,
	}
}
