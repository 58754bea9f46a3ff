package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ragspace-go/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// openAIProvider 通过官方兼容 SDK 调用 OpenAI 的 chat completions 接口。
type openAIProvider struct {
	client    *openai.Client
	maxTokens int
}

// NewOpenAIProvider 创建 OpenAI 后端的 Provider。
func NewOpenAIProvider(cfg config.OpenAIConfig, maxTokens int) Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		maxTokens: maxTokens,
	}
}

func (p *openAIProvider) request(model, prompt string, stream bool) openai.ChatCompletionRequest {
	// Stream 与 Complete 共用同一套请求参数
	return openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: stream,
	}
}

// Stream 以流式方式调用并将增量内容逐块写入 w。
func (p *openAIProvider) Stream(ctx context.Context, model, prompt string, w ChunkWriter) error {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(model, prompt, true))
	if err != nil {
		return fmt.Errorf("openai stream request failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream read failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		content := resp.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := w.WriteChunk([]byte(content)); err != nil {
			// 消费方不再拉取，停止读取后续分块
			return err
		}
	}
}

// Complete 以一次非流式调用返回完整响应。
func (p *openAIProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(model, prompt, false))
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
