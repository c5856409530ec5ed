package tools

import (
	"context"
	"fmt"
	"sync"

	"zhitalk-go/pkg/llm"
	"zhitalk-go/pkg/log"
)

// Registry 工具注册中心
type Registry struct {
	tools map[string]*Tool
	mu    sync.RWMutex
}

// NewRegistry 创建工具注册中心
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register 注册工具
func (r *Registry) Register(tool *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name)
	}

	r.tools[tool.Name] = tool
	log.Infof("工具已注册: %s", tool.Name)
	return nil
}

// Get 获取工具
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// Definitions 返回指定工具集的 LLM 工具声明。
// names 为 nil 时返回全部工具；未注册的名称被跳过。
// 这是“已定义但未激活”开关的实现点：handler 只把 active 名单传进来。
func (r *Registry) Definitions(names []string) []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if names == nil {
		defs := make([]llm.ToolDefinition, 0, len(r.tools))
		for _, tool := range r.tools {
			defs = append(defs, tool.Definition())
		}
		return defs
	}

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			defs = append(defs, tool.Definition())
		}
	}
	return defs
}

// Execute 执行一次模型发起的工具调用。
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) (interface{}, error) {
	log.Infow("执行工具调用",
		"tool", call.Function.Name,
		"callId", call.ID)

	tool, err := r.Get(call.Function.Name)
	if err != nil {
		return nil, err
	}

	result, err := tool.Execute(ctx, call.Function.Arguments)
	if err != nil {
		log.Errorf("工具执行失败: %s, error: %v", call.Function.Name, err)
		return nil, err
	}

	log.Infof("工具执行成功: %s", call.Function.Name)
	return result, nil
}

// Count 获取注册的工具数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
