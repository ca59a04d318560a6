// Package stability 实现 Stability AI 文生图适配器
package stability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pairshot/internal/provider"
)

const (
	defaultBaseURL = "https://api.stability.ai"
	generatePath   = "/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image"

	requestTimeout = 60 * time.Second
)

// Adapter Stability AI 适配器
type Adapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New 创建 Stability 适配器
func New(baseURL, apiKey string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Name 返回适配器名称
func (a *Adapter) Name() string {
	return "stability"
}

// Free 付费服务
func (a *Adapter) Free() bool {
	return false
}

// generateRequest 请求体
type generateRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Steps       int          `json:"steps"`
	Seed        int64        `json:"seed"`
	Samples     int          `json:"samples"`
}

type textPrompt struct {
	Text string `json:"text"`
}

// generateResponse 响应体，图片以 base64 内嵌
type generateResponse struct {
	Artifacts []artifact `json:"artifacts"`
}

type artifact struct {
	Base64 string `json:"base64"`
}

// Generate 生成图片
// 任何非 2xx 都是硬失败，不在适配器内重试
func (a *Adapter) Generate(ctx context.Context, prompt string, seed int64) (*provider.Image, error) {
	payload := generateRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		CfgScale:    7,
		Width:       1024,
		Height:      1024,
		Steps:       30,
		Seed:        seed,
		Samples:     1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stability: status %d: %s", resp.StatusCode, string(errText))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("stability: decode response: %w", err)
	}
	if len(result.Artifacts) == 0 || result.Artifacts[0].Base64 == "" {
		return nil, provider.ErrEmptyPayload
	}

	data, err := base64.StdEncoding.DecodeString(result.Artifacts[0].Base64)
	if err != nil {
		return nil, fmt.Errorf("stability: decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, provider.ErrEmptyPayload
	}

	return &provider.Image{
		Provider:    a.Name(),
		Data:        data,
		ContentType: "image/png",
	}, nil
}
