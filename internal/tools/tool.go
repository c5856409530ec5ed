// Package tools 定义了模型在生成过程中可调用的工具：
// 每个工具声明名称、描述与参数 JSON Schema，并提供一个无隐藏状态的
// 执行函数。
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"zhitalk-go/pkg/llm"
)

// Tool 工具定义（OpenAI Function Calling 格式）
type Tool struct {
	Name        string          `json:"name"`        // 工具名称
	Description string          `json:"description"` // 工具描述，模型据此决定是否调用
	Parameters  ParameterSchema `json:"parameters"`  // 参数定义
	Handler     ToolHandler     `json:"-"`           // 工具处理函数（不序列化）
}

// ParameterSchema JSON Schema 格式的参数定义
type ParameterSchema struct {
	Type       string              `json:"type"` // "object"
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property 参数属性
type Property struct {
	Type        string    `json:"type"` // string, number, integer, boolean, array, object
	Description string    `json:"description"`
	Items       *Property `json:"items,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
}

// ToolHandler 工具处理函数
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Execute 解析参数并执行工具。
func (t *Tool) Execute(ctx context.Context, arguments string) (interface{}, error) {
	if t.Handler == nil {
		return nil, fmt.Errorf("tool handler not implemented: %s", t.Name)
	}

	params := map[string]interface{}{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &params); err != nil {
			return nil, fmt.Errorf("解析工具参数失败: %w", err)
		}
	}
	return t.Handler(ctx, params)
}

// Definition 转换为传给 LLM 的工具声明。
func (t *Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}
