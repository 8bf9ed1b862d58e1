// Package factory 根据配置创建 LLM Client，打破 llm 包与 provider 子包之间的循环依赖。
package factory

import (
	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/config"
	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/llm/providers/glm"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// NewProvider 按名称创建 Provider。
func NewProvider(cfg config.LLMConfig, secret llm.Secret, logger *zap.Logger) (llm.Provider, error) {
	switch cfg.Provider {
	case "", "glm", "zhipu":
		return glm.New(glm.Config{
			APIKey:  secret,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, nil, logger), nil
	default:
		return nil, types.Errorf(types.ErrValidation, "unsupported llm provider %q", cfg.Provider)
	}
}

// NewClient 解析密钥并创建 Client。没有可用密钥时返回 UNAVAILABLE 错误，
// 调用方可据此退回测试模式。
func NewClient(cfg config.LLMConfig, logger *zap.Logger, opts ...llm.ClientOption) (*llm.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	secret, source, err := llm.ResolveSecret(llm.SecretSource{
		EnvVars: cfg.APIKeyEnv,
		Files:   cfg.APIKeyFiles,
	})
	if err != nil {
		return nil, types.NewError(types.ErrUnavailable, "no LLM API secret configured").WithCause(err)
	}

	provider, err := NewProvider(cfg, secret, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("llm client configured",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
		zap.String("secret_source", source),
		zap.Stringer("secret", secret))

	base := []llm.ClientOption{
		llm.WithModel(cfg.Model),
		llm.WithTimeout(cfg.Timeout),
		llm.WithLogger(logger),
	}
	return llm.NewClient(provider, append(base, opts...)...), nil
}
