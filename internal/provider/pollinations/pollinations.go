// Package pollinations 实现免费匿名的 Pollinations 图片生成适配器
package pollinations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pairshot/internal/provider"
)

const (
	defaultBaseURL = "https://image.pollinations.ai"

	// 图片尺寸固定为竖版 768x1024
	imageWidth  = 768
	imageHeight = 1024

	// 上游过载（502/524）时最多尝试 6 次
	maxAttempts = 6

	// 线性退避基数，第 n 次重试前等待 backoffUnit*n
	backoffUnit = 3 * time.Second

	requestTimeout = 45 * time.Second
)

// Adapter Pollinations 适配器
type Adapter struct {
	baseURL string
	client  *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

// New 创建 Pollinations 适配器
// baseURL 为空时使用官方地址
func New(baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		sleep:   sleepCtx,
	}
}

// Name 返回适配器名称
func (a *Adapter) Name() string {
	return "pollinations"
}

// Free 免费匿名服务
func (a *Adapter) Free() bool {
	return true
}

// Generate 生成图片
//
// GET 请求，prompt 编码进路径。仅 502/524 触发重试，
// 其余非 2xx 立即失败；成功但响应体为空同样视为失败。
func (a *Adapter) Generate(ctx context.Context, prompt string, seed int64) (*provider.Image, error) {
	reqURL := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&seed=%d&nologo=true&safe=true",
		a.baseURL, url.PathEscape(prompt), imageWidth, imageHeight, seed)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// 线性退避：3s、6s、9s...
			if err := a.sleep(ctx, backoffUnit*time.Duration(attempt-1)); err != nil {
				return nil, err
			}
		}

		img, retryable, err := a.doRequest(ctx, reqURL)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("pollinations: exhausted %d attempts: %w", maxAttempts, lastErr)
}

// doRequest 执行一次请求，返回 (结果, 是否可重试, 错误)
func (a *Adapter) doRequest(ctx context.Context, reqURL string) (*provider.Image, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == 524:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("pollinations: upstream overloaded: status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("pollinations: status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, provider.ErrEmptyPayload
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &provider.Image{
		Provider:    a.Name(),
		Data:        data,
		ContentType: contentType,
	}, false, nil
}

// sleepCtx 可被 ctx 取消的休眠
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
