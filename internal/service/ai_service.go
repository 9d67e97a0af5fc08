package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/config"
	"cybertrace-ops/internal/llm"
)

// ErrUnknownProvider 不支持的模型提供方
var ErrUnknownProvider = errors.New("unknown ai provider")

// NewModel 根据配置创建模型实例
// 参数:
//   - ctx: 上下文（Gemini 客户端初始化需要）
//   - cfg: 模型配置
//
// 返回:
//   - llm.Model: 模型边界实现
//   - error: 提供方不支持或客户端初始化失败
func NewModel(ctx context.Context, cfg config.AIConfig) (llm.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI, "openrouter", "":
		return llm.NewOpenAIModel(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case config.ProviderGemini:
		return llm.NewGeminiModel(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, errors.Wrapf(ErrUnknownProvider, "provider %q", cfg.Provider)
	}
}

// SystemPrompt 返回生效的系统提示词，未配置时使用内置提示词
func SystemPrompt(cfg config.AIConfig) string {
	if p := strings.TrimSpace(cfg.SystemPrompt); p != "" {
		return p
	}
	return agent.DefaultSystemPrompt
}
