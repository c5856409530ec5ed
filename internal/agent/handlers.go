package agent

import (
	"zhitalk-go/internal/config"
	"zhitalk-go/internal/tools"
	"zhitalk-go/pkg/catalog"
	"zhitalk-go/pkg/llm"
)

// 默认助手每次请求最多允许的模型推理步数，防止无界的工具调用循环。
const defaultStepLimit = 5

// defaultActiveTools 默认助手的激活工具名单。
var defaultActiveTools = []string{
	"getWeather",
	"createDocument",
	"updateDocument",
	"requestSuggestions",
}

// resumeOptActiveTools 简历优化助手的激活工具名单。
// scoreSkills 已注册但不在名单内：配置开关，保留能力。
var resumeOptActiveTools = []string{
	"getResumeTemplate",
}

// NewDefaultHandler 创建通用助手。
// modelAlias 为 "chat-model-reasoning" 时禁用全部工具（推理模型不支持工具调用）。
func NewDefaultHandler(cfg config.LLMConfig, client llm.Client, registry *tools.Registry, cat *catalog.Cache, modelAlias string) *Handler {
	active := defaultActiveTools
	if modelAlias == "chat-model-reasoning" {
		active = []string{}
	}
	return &Handler{
		kind:         KindDefault,
		systemPrompt: defaultSystemPrompt,
		model:        llm.ResolveModel(cfg, modelAlias),
		client:       client,
		registry:     registry,
		activeTools:  active,
		stepLimit:    defaultStepLimit,
		wordChunking: true,
		catalog:      cat,
	}
}

// NewResumeOptHandler 创建简历优化助手。
func NewResumeOptHandler(cfg config.LLMConfig, client llm.Client, registry *tools.Registry, cat *catalog.Cache) *Handler {
	return &Handler{
		kind:         KindResumeOpt,
		systemPrompt: resumeOptSystemPrompt,
		model:        llm.ResolveModel(cfg, "chat-model"),
		client:       client,
		registry:     registry,
		activeTools:  resumeOptActiveTools,
		stepLimit:    defaultStepLimit,
		catalog:      cat,
	}
}

// NewMockInterviewHandler 创建模拟面试助手。不携带工具。
func NewMockInterviewHandler(cfg config.LLMConfig, client llm.Client, registry *tools.Registry, cat *catalog.Cache) *Handler {
	return &Handler{
		kind:         KindMockInterview,
		systemPrompt: mockInterviewSystemPrompt,
		model:        llm.ResolveModel(cfg, "chat-model"),
		client:       client,
		registry:     registry,
		activeTools:  []string{},
		stepLimit:    1,
		catalog:      cat,
	}
}
