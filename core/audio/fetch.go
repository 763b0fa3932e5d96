package audio

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"LyraFM/logger"
	"LyraFM/model"
)

// Fetcher 从 CDN 拉取加密音频字节。音频不走会话的加密帧通道，
// 而是独立的 HTTPS 批量通道，取消依赖请求上下文中断底层连接。
type Fetcher struct {
	client *http.Client
	base   string
}

// NewFetcher 创建 CDN 拉取器
func NewFetcher(base string) *Fetcher {
	return &Fetcher{
		base: base,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				MaxIdleConns:          4,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// FetchEncrypted 下载整个加密音频文件。上下文取消会立即中断传输。
func (f *Fetcher) FetchEncrypted(ctx context.Context, file model.FileId) ([]byte, error) {
	url := fmt.Sprintf("%s/audio/%s", f.base, file.ToBase16())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构造下载请求失败: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载音频失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载音频失败，状态码: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取音频数据失败: %w", err)
	}

	logger.Debug("音频下载完成",
		logger.String("file", file.ToBase16()),
		logger.Int("bytes", len(data)),
		logger.Duration("elapsed", time.Since(start)))

	return data, nil
}
