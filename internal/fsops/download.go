package fsops

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DownloadOptions 控制单次下载的请求头与 TLS 行为。
type DownloadOptions struct {
	Headers map[string]string
	Timeout time.Duration
	// InsecureTLS 允许自签名证书，仅透传给 transport，不做其他校验。
	InsecureTLS bool
}

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

func (f *osFS) DownloadFile(ctx context.Context, url, dst string, opts DownloadOptions) error {
	unlock := f.lockPath(dst)
	defer unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("构建下载请求失败: %w", err)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := newDownloadClient(opts).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("下载失败: %s 返回 %d", url, resp.StatusCode)
	}

	return writeAtomic(ctx, dst, resp.Body)
}

func newDownloadClient(opts DownloadOptions) *http.Client {
	timeout := 30 * time.Second
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	transport := defaultTransport.Clone()
	if opts.InsecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
