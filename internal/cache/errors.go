package cache

import (
	"errors"
	"fmt"
)

// ErrNotCacheable 表示输入不是 http/https URL，在任何 I/O 之前同步返回。
var ErrNotCacheable = errors.New("url is not cacheable")

// MaterializeError 包装下载/复制步骤的失败。出现该错误时不会写入记录，
// 已部分写出的文件由物化方自行保证原子性。
type MaterializeError struct {
	URL string
	Err error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materialize %s: %v", e.URL, e.Err)
}

func (e *MaterializeError) Unwrap() error {
	return e.Err
}
