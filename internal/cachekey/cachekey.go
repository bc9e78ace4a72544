package cachekey

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// QueryPolicy 决定哪些查询参数参与缓存键计算。All 为 true 时保留全部参数；
// 否则仅保留 Names 中列出的参数名；二者都为空表示完全忽略查询串。
type QueryPolicy struct {
	All   bool
	Names []string
}

// RelativePath 表示一条缓存记录在缓存根目录下的两段式相对路径。
type RelativePath struct {
	// Dir 是按 host 归并出的目录名，例如 example_com_<sha1>。
	Dir string
	// File 是内容哈希派生出的文件名，例如 <sha1>.png。
	File string
}

// Join 返回 URL 风格的相对路径（Dir/File）。
func (p RelativePath) Join() string {
	return p.Dir + "/" + p.File
}

// formulaMarker 标记公式渲染服务的 URL 家族。这类 URL 的缓存键使用一套
// 历史遗留的拆半求和哈希，改动会使线上已落盘的缓存全部失效，必须原样保留。
const formulaMarker = "math.cgi"

// imageExtensions 是允许直接保留的扩展名，其余一律回退为 jpg。
var imageExtensions = map[string]struct{}{
	"png":  {},
	"jpeg": {},
	"jpg":  {},
	"gif":  {},
	"bmp":  {},
	"tiff": {},
	"tif":  {},
}

// Canonicalize 将 URL 规约为 scheme+host+path+选定查询参数的标准形式，
// 作为记录库的键使用。url.Values.Encode 自带按键排序，因此结果对参数
// 顺序不敏感，且对已规约的输入幂等。
func Canonicalize(rawURL string, policy QueryPolicy) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("解析 URL 失败: %w", err)
	}

	canonical := url.URL{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
	}

	if selected := selectQuery(parsed.Query(), policy); len(selected) > 0 {
		canonical.RawQuery = selected.Encode()
	}

	return canonical.String(), nil
}

// DeriveRelativePath 从 URL 独立推导两段式相对路径，不依赖记录库状态。
func DeriveRelativePath(rawURL string, policy QueryPolicy) (RelativePath, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return RelativePath{}, fmt.Errorf("解析 URL 失败: %w", err)
	}
	if parsed.Host == "" {
		return RelativePath{}, fmt.Errorf("URL 缺少 host: %s", rawURL)
	}

	dir := hostBucket(parsed.Host)
	file := cacheFileName(parsed, policy)
	return RelativePath{Dir: dir, File: file}, nil
}

// hostBucket 将 host 压缩为目录安全的名字。小写化后把 [a-z0-9_] 之外的
// 字符统一替换为下划线，再追加原始 host 的 sha1，防止大小写或 punycode
// 变体归并到同一目录后互相覆盖。
func hostBucket(host string) string {
	lowered := strings.ToLower(host)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String() + "_" + sha1Hex([]byte(host))
}

func cacheFileName(parsed *url.URL, policy QueryPolicy) string {
	dir, base := path.Split(parsed.Path)
	dir = strings.TrimSuffix(dir, "/")

	stem := base
	ext := ""
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		stem = base[:idx]
		ext = strings.ToLower(base[idx+1:])
	}
	if _, ok := imageExtensions[ext]; !ok {
		ext = "jpg"
	}

	var digest string
	if idx := strings.Index(parsed.Path, formulaMarker); idx >= 0 {
		digest = formulaDigest(formulaSuffix(parsed, idx))
	} else {
		input := dir + "/" + stem + "." + ext
		if qs := serializeQuery(parsed.Query(), policy); qs != "" {
			input += qs
		}
		digest = sha1Hex([]byte(input))
	}

	return digest + "." + ext
}

// formulaSuffix 取出公式 URL 中 marker 之后的全部内容（含查询串）。
func formulaSuffix(parsed *url.URL, markerIdx int) string {
	suffix := parsed.Path[markerIdx+len(formulaMarker):]
	if parsed.RawQuery != "" {
		suffix += "?" + parsed.RawQuery
	}
	return suffix
}

// formulaDigest 把后缀拆成前后两半分别做 sha1，再按 160 位模加求和。
// 这是旧版客户端的派生方式，保持逐位一致才能续用已有磁盘缓存。
func formulaDigest(suffix string) string {
	half := len(suffix) / 2
	left := sha1.Sum([]byte(suffix[:half]))
	right := sha1.Sum([]byte(suffix[half:]))

	var sum [sha1.Size]byte
	carry := 0
	for i := sha1.Size - 1; i >= 0; i-- {
		v := int(left[i]) + int(right[i]) + carry
		sum[i] = byte(v & 0xff)
		carry = v >> 8
	}
	return hex.EncodeToString(sum[:])
}

// serializeQuery 将选定的查询参数按键名排序后拼接，保证参数顺序不影响键值。
func serializeQuery(query url.Values, policy QueryPolicy) string {
	selected := selectQuery(query, policy)
	if len(selected) == 0 {
		return ""
	}

	keys := make([]string, 0, len(selected))
	for k := range selected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := selected[k]
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, "&")
}

func selectQuery(query url.Values, policy QueryPolicy) url.Values {
	if policy.All {
		return query
	}
	if len(policy.Names) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(policy.Names))
	for _, name := range policy.Names {
		allowed[name] = struct{}{}
	}

	selected := url.Values{}
	for k, vs := range query {
		if _, ok := allowed[k]; ok {
			selected[k] = vs
		}
	}
	return selected
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
