// Package llm provides a provider-polymorphic gateway to chat completion backends.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// ChunkWriter 接收流式返回的文本分块。
// 返回错误表示消费方不再需要后续分块，流会就此停止。
type ChunkWriter interface {
	WriteChunk(data []byte) error
}

// Provider 定义了单个 LLM 后端的两种调用方式。
// Stream 与 Complete 必须构造相同的请求参数（model、prompt、max_tokens），
// 两次独立调用的内容应当实质等价，但不保证逐字相同。
type Provider interface {
	// Stream 在分块到达时逐块写入 w；后端或网络错误会终止序列，
	// 已写出的分块不会被撤回。
	Stream(ctx context.Context, model, prompt string, w ChunkWriter) error
	// Complete 以一次阻塞调用返回完整响应文本。
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Registry 按归一化的提供方标识注册 Provider。
// 新增一个后端只需要一次 Register 调用，不需要散落的分支判断。
type Registry struct {
	providers map[string]Provider
}

// NewRegistry 创建一个空的 Registry。
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register 将模型家族标识（如 "gpt"、"claude"）绑定到一个 Provider。
func (r *Registry) Register(family string, p Provider) {
	r.providers[strings.ToLower(family)] = p
}

// Resolve 根据模型名归一化出家族标识并返回对应的 Provider。
// 未注册的家族返回错误，例如 "llama-2"。
func (r *Registry) Resolve(model string) (Provider, error) {
	family := normalizeFamily(model)
	if p, ok := r.providers[family]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no provider registered for model %q", model)
}

// normalizeFamily 取模型名中第一个 '-' 之前的小写段作为家族标识，
// "gpt-4" -> "gpt"，"claude-3-opus" -> "claude"。
func normalizeFamily(model string) string {
	name := strings.ToLower(strings.TrimSpace(model))
	if i := strings.Index(name, "-"); i > 0 {
		return name[:i]
	}
	return name
}
