package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ragspace-go/internal/config"
)

// anthropicProvider 直接对接 Anthropic 的 HTTPS 流式协议：
// 响应为 `data: ` 前缀的行分隔 JSON 事件，非该前缀的行忽略，
// 连接关闭即流结束。
type anthropicProvider struct {
	cfg       config.AnthropicConfig
	maxTokens int
	client    *http.Client
}

// NewAnthropicProvider 创建 Anthropic 后端的 Provider。
func NewAnthropicProvider(cfg config.AnthropicConfig, maxTokens int) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	return &anthropicProvider{
		cfg:       cfg,
		maxTokens: maxTokens,
		client:    &http.Client{},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicEvent 只解码我们关心的事件字段。
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

func (p *anthropicProvider) newRequest(ctx context.Context, model, prompt string, stream bool) (*http.Request, error) {
	// Stream 与 Complete 共用同一套请求参数
	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: p.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		Stream:    stream,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", p.cfg.Version)
	req.Header.Set("content-type", "application/json")
	return req, nil
}

// Stream 解析 SSE 事件流，将 content_block_delta 的增量文本逐块写入 w。
func (p *anthropicProvider) Stream(ctx context.Context, model, prompt string, w ChunkWriter) error {
	req, err := p.newRequest(ctx, model, prompt, true)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// 连接关闭即流结束
				return nil
			}
			return fmt.Errorf("failed to read from anthropic stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "" {
			continue
		}

		var event anthropicEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// 无法解析的数据行直接跳过
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text == "" {
				continue
			}
			if err := w.WriteChunk([]byte(event.Delta.Text)); err != nil {
				return err
			}
		case "message_stop":
			return nil
		}
	}
}

// Complete 以非流式调用返回完整响应文本。
func (p *anthropicProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	req, err := p.newRequest(ctx, model, prompt, false)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", errors.New("anthropic returned empty content")
	}
	return result.Content[0].Text, nil
}
