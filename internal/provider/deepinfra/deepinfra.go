// Package deepinfra 实现 DeepInfra 文生图适配器
package deepinfra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pairshot/internal/provider"
)

const (
	defaultBaseURL = "https://api.deepinfra.com"
	inferencePath  = "/v1/inference/stabilityai/sdxl-turbo"

	requestTimeout = 60 * time.Second
)

// placeholderKeys 配置模板中的占位密钥，视同未配置
var placeholderKeys = map[string]bool{
	"":                   true,
	"YOUR_API_KEY":       true,
	"YOUR_DEEPINFRA_KEY": true,
	"your-deepinfra-key": true,
	"changeme":           true,
}

// Adapter DeepInfra 适配器
type Adapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New 创建 DeepInfra 适配器
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
	return "deepinfra"
}

// Free 付费服务
func (a *Adapter) Free() bool {
	return false
}

// keyConfigured 密钥存在且不是占位值
func (a *Adapter) keyConfigured() bool {
	return !placeholderKeys[strings.TrimSpace(a.apiKey)]
}

// inferenceRequest 请求体
type inferenceRequest struct {
	Input inferenceInput `json:"input"`
}

type inferenceInput struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Seed              int64   `json:"seed"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
}

// inferenceResponse 响应体，images 为 data-URI 形式的 base64 图片
type inferenceResponse struct {
	Images []string `json:"images"`
}

// Generate 生成图片
// 密钥未配置时不发起网络调用，直接短路失败
func (a *Adapter) Generate(ctx context.Context, prompt string, seed int64) (*provider.Image, error) {
	if !a.keyConfigured() {
		return nil, provider.ErrMissingAPIKey
	}

	payload := inferenceRequest{
		Input: inferenceInput{
			Prompt:            prompt,
			NegativePrompt:    "blurry, distorted, low quality, watermark",
			NumInferenceSteps: 30,
			GuidanceScale:     7.5,
			Seed:              seed,
			Width:             1024,
			Height:            1024,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+inferencePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepinfra: status %d: %s", resp.StatusCode, string(errText))
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("deepinfra: decode response: %w", err)
	}
	if len(result.Images) == 0 {
		return nil, provider.ErrEmptyPayload
	}

	data, contentType, err := decodeDataURI(result.Images[0])
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, provider.ErrEmptyPayload
	}

	return &provider.Image{
		Provider:    a.Name(),
		Data:        data,
		ContentType: contentType,
	}, nil
}

// decodeDataURI 解析 "data:image/png;base64,...." 形式的图片
// 也兼容无前缀的裸 base64
func decodeDataURI(s string) ([]byte, string, error) {
	contentType := "image/png"
	if strings.HasPrefix(s, "data:") {
		meta, encoded, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return nil, "", fmt.Errorf("deepinfra: malformed data uri")
		}
		if ct, _, _ := strings.Cut(meta, ";"); ct != "" {
			contentType = ct
		}
		s = encoded
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("deepinfra: decode image: %w", err)
	}
	return data, contentType, nil
}
