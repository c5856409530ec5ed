// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"zhitalk-go/internal/config"
)

// Message 表示一条角色消息。
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall 是模型发起的一次工具调用。
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall 是工具调用的函数详情，Arguments 为 JSON 字符串。
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition 是传给模型的工具声明（OpenAI function calling 格式）。
type ToolDefinition struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema 描述函数名、用途与参数 JSON Schema。
type FunctionSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

// Usage 是服务商返回的原始 token 用量。
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationParams 控制生成行为。
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ChatOptions 是一次聊天调用的选项。
type ChatOptions struct {
	Model      string
	Tools      []ToolDefinition
	JSONMode   bool // 为 true 时要求模型输出 JSON 对象
	Generation *GenerationParams
}

// Delta 是流式响应中的一个增量片段。
type Delta struct {
	Content string
}

// StreamResult 是一次流式调用结束后的汇总结果。
type StreamResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // "stop" / "tool_calls" / ...
	Usage        *Usage
}

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 执行一次非流式聊天调用，返回完整回复与用量。
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (string, *Usage, error)
	// StreamChat 执行一次流式聊天调用，文本增量通过 emit 回调下发，
	// 结束后返回包含完整文本、工具调用与用量的汇总结果。
	StreamChat(ctx context.Context, messages []Message, opts *ChatOptions, emit func(Delta) error) (*StreamResult, error)
}

type deepseekClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	return &deepseekClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// ResolveModel 将对外模型别名解析为服务商的真实模型 ID。
// 未配置的别名原样返回。
func ResolveModel(cfg config.LLMConfig, alias string) string {
	if id, ok := cfg.Models[alias]; ok && id != "" {
		return id
	}
	return alias
}

type responseFormat struct {
	Type string `json:"type"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []Message        `json:"messages"`
	Stream         bool             `json:"stream"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
	StreamOptions  *streamOptions   `json:"stream_options,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
	TopP           *float64         `json:"top_p,omitempty"`
	MaxTokens      *int             `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// toolCallDelta 是流式工具调用的增量片段，按 index 聚合。
type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func (c *deepseekClient) buildRequest(messages []Message, opts *ChatOptions, stream bool) chatRequest {
	reqBody := chatRequest{
		Messages: messages,
		Stream:   stream,
	}
	if opts != nil {
		reqBody.Model = opts.Model
		reqBody.Tools = opts.Tools
		if opts.JSONMode {
			reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}
	if stream {
		reqBody.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	// 从配置或传参注入生成参数（传参优先生效）
	var gen *GenerationParams
	if opts != nil {
		gen = opts.Generation
	}
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	} else {
		if c.cfg.Generation.Temperature != 0 {
			t := c.cfg.Generation.Temperature
			reqBody.Temperature = &t
		}
		if c.cfg.Generation.TopP != 0 {
			p := c.cfg.Generation.TopP
			reqBody.TopP = &p
		}
		if c.cfg.Generation.MaxTokens != 0 {
			m := c.cfg.Generation.MaxTokens
			reqBody.MaxTokens = &m
		}
	}
	return reqBody
}

func (c *deepseekClient) doRequest(ctx context.Context, reqBody chatRequest, accept string) (*http.Response, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return resp, nil
}

// Chat 执行一次非流式聊天调用。
func (c *deepseekClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (string, *Usage, error) {
	resp, err := c.doRequest(ctx, c.buildRequest(messages, opts, false), "")
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", nil, fmt.Errorf("chat api returned no choices")
	}
	return chatResp.Choices[0].Message.Content, chatResp.Usage, nil
}

// StreamChat 执行一次流式聊天调用，逐行解析 SSE 分块。
func (c *deepseekClient) StreamChat(ctx context.Context, messages []Message, opts *ChatOptions, emit func(Delta) error) (*StreamResult, error) {
	resp, err := c.doRequest(ctx, c.buildRequest(messages, opts, true), "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &StreamResult{}
	var content strings.Builder
	// 工具调用增量按 index 聚合：id/name 首个分块给出，arguments 分段追加
	pending := map[int]*ToolCall{}
	maxIndex := -1

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}

		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if emit != nil {
				if err := emit(Delta{Content: choice.Delta.Content}); err != nil {
					return nil, fmt.Errorf("failed to emit stream delta: %w", err)
				}
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			call, ok := pending[tc.Index]
			if !ok {
				call = &ToolCall{Type: "function"}
				pending[tc.Index] = call
				if tc.Index > maxIndex {
					maxIndex = tc.Index
				}
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			call.Function.Arguments += tc.Function.Arguments
		}
	}

	result.Content = content.String()
	for i := 0; i <= maxIndex; i++ {
		if call, ok := pending[i]; ok {
			result.ToolCalls = append(result.ToolCalls, *call)
		}
	}
	if result.FinishReason == "" {
		if len(result.ToolCalls) > 0 {
			result.FinishReason = "tool_calls"
		} else {
			result.FinishReason = "stop"
		}
	}
	return result, nil
}
