// =============================================================================
// 📦 patent-agents 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Progress:  DefaultProgressConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "glm",
		BaseURL:     "https://open.bigmodel.cn",
		Model:       "glm-4-plus",
		Timeout:     300 * time.Second,
		Temperature: 0.3,
		APIKeyEnv:   []string{"ZHIPUAI_API_KEY", "GLM_API_KEY"},
		APIKeyFiles: []string{
			"/workspace/glm_api_key",
			"/workspace/.private/GLM_API_KEY",
			"~/.private/GLM_API_KEY",
			"glm_api_key",
			".private/GLM_API_KEY",
		},
	}
}

// DefaultWorkflowConfig 返回默认工作流配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		DefaultType:     "enhanced",
		MaxConcurrent:   8,
		TestStageDelay:  0,
		SummaryMaxBytes: 200,
		Tokenizer:       "tiktoken",
		DefaultTestMode: true,
	}
}

// DefaultProgressConfig 返回默认进度产物配置
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Root:         "output/progress",
		PollInterval: 2 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "patent-agents",
		SampleRate:   0.1,
	}
}
