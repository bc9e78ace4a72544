// Package cache 实现「取不到或已过期就重新物化」的缓存编排：
// 记录库负责 URL → 相对路径的带 TTL 映射，文件系统负责实际字节，
// 本包负责把两边在部分失败（记录悬空、文件被外部删除、并发重缓存）
// 之后重新对齐。
package cache
