package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhitalk-go/internal/tools"
	"zhitalk-go/pkg/llm"
)

// fakeLLM 按脚本回放流式与非流式调用。
type fakeLLM struct {
	chatContent string
	chatErr     error
	chatCalls   int

	// 每次 StreamChat 按序消费一个 step
	steps      []fakeStep
	streamOpts []*llm.ChatOptions
}

type fakeStep struct {
	deltas []string
	result *llm.StreamResult
	err    error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (string, *llm.Usage, error) {
	f.chatCalls++
	if f.chatErr != nil {
		return "", nil, f.chatErr
	}
	return f.chatContent, &llm.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions, emit func(llm.Delta) error) (*llm.StreamResult, error) {
	f.streamOpts = append(f.streamOpts, opts)
	if len(f.steps) == 0 {
		return nil, errors.New("fakeLLM: no scripted steps left")
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	for _, d := range step.deltas {
		if err := emit(llm.Delta{Content: d}); err != nil {
			return nil, err
		}
	}
	return step.result, nil
}

func collectEvents(t *testing.T, h *StreamHandle) []Event {
	t.Helper()
	var events []Event
	for ev := range h.Events {
		events = append(events, ev)
	}
	return events
}

func newTestHandler(client llm.Client, registry *tools.Registry, active []string, stepLimit int) *Handler {
	return &Handler{
		kind:         KindDefault,
		systemPrompt: "test",
		model:        "deepseek-chat",
		client:       client,
		registry:     registry,
		activeTools:  active,
		stepLimit:    stepLimit,
	}
}

func TestRunEmitsDeltasThenFinishExactlyOnce(t *testing.T) {
	client := &fakeLLM{steps: []fakeStep{{
		deltas: []string{"你好", "，世界"},
		result: &llm.StreamResult{
			Content:      "你好，世界",
			FinishReason: "stop",
			Usage:        &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}}}

	h := newTestHandler(client, tools.NewRegistry(), []string{}, 1)
	handle := h.Run(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	events := collectEvents(t, handle)

	finishCount := 0
	finishIndex, usageIndex := -1, -1
	for i, ev := range events {
		switch ev.Type {
		case EventFinish:
			finishCount++
			finishIndex = i
		case EventUsage:
			usageIndex = i
		}
	}
	assert.Equal(t, 1, finishCount)
	assert.Equal(t, len(events)-1, finishIndex, "finish 必须是最后一个事件")
	require.NotEqual(t, -1, usageIndex)
	assert.Less(t, usageIndex, finishIndex, "usage 不晚于 finish")

	result := handle.Result()
	require.NoError(t, result.Err)
	assert.Equal(t, "你好，世界", result.Text)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 5, result.Usage.OutputTokens)
	assert.Equal(t, 15, result.Usage.TotalTokens)
	assert.Equal(t, "deepseek-chat", result.Usage.ModelID)
}

func TestRunPreservesPartialOutputOnError(t *testing.T) {
	streamErr := errors.New("connection reset")
	client := &fakeLLM{steps: []fakeStep{{
		deltas: []string{"部分", "输出"},
		err:    nil,
		result: &llm.StreamResult{Content: "部分输出", FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "missing", Arguments: "{}"},
		}}},
	}, {
		err: streamErr,
	}}}

	h := newTestHandler(client, tools.NewRegistry(), nil, 5)
	handle := h.Run(context.Background(), nil)
	events := collectEvents(t, handle)

	var sawError bool
	finishCount := 0
	for _, ev := range events {
		if ev.Type == EventError {
			sawError = true
		}
		if ev.Type == EventFinish {
			finishCount++
		}
	}
	assert.True(t, sawError, "错误以终止事件上报，不是 panic")
	assert.Equal(t, 1, finishCount, "出错时 finish 仍然恰好一次")

	result := handle.Result()
	assert.ErrorIs(t, result.Err, streamErr)
	assert.Equal(t, "部分输出", result.Text, "已产出的文本保留")
}

func TestRunExecutesToolCallLoop(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewResumeTemplateTool()))

	client := &fakeLLM{steps: []fakeStep{
		{
			result: &llm.StreamResult{
				FinishReason: "tool_calls",
				ToolCalls: []llm.ToolCall{{
					ID:       "call-1",
					Type:     "function",
					Function: llm.FunctionCall{Name: "getResumeTemplate", Arguments: ""},
				}},
			},
		},
		{
			deltas: []string{"这是模板"},
			result: &llm.StreamResult{
				Content:      "这是模板",
				FinishReason: "stop",
				Usage:        &llm.Usage{TotalTokens: 20},
			},
		},
	}}

	h := newTestHandler(client, registry, []string{"getResumeTemplate"}, 5)
	handle := h.Run(context.Background(), nil)
	events := collectEvents(t, handle)

	var gotCall, gotResult bool
	for _, ev := range events {
		if ev.Type == EventToolCall && ev.ToolName == "getResumeTemplate" {
			gotCall = true
		}
		if ev.Type == EventToolResult && ev.ToolName == "getResumeTemplate" {
			gotResult = true
		}
	}
	assert.True(t, gotCall)
	assert.True(t, gotResult)
	assert.Equal(t, "这是模板", handle.Result().Text)
}

func TestRunStopsAtStepLimit(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewResumeTemplateTool()))

	toolStep := fakeStep{result: &llm.StreamResult{
		FinishReason: "tool_calls",
		ToolCalls: []llm.ToolCall{{
			ID:       "call-n",
			Type:     "function",
			Function: llm.FunctionCall{Name: "getResumeTemplate", Arguments: ""},
		}},
	}}
	// 模型永远要求调用工具：步数上限必须截断循环
	client := &fakeLLM{steps: []fakeStep{toolStep, toolStep, toolStep, toolStep, toolStep, toolStep, toolStep}}

	h := newTestHandler(client, registry, nil, 5)
	handle := h.Run(context.Background(), nil)
	collectEvents(t, handle)

	assert.Len(t, client.streamOpts, 5, "最多5个推理步")
	assert.Len(t, client.steps, 2, "剩余脚本未被消费")
}

func TestRunUsageEnrichmentUnavailableFallsBackToRaw(t *testing.T) {
	// handler 未配置目录缓存，usage 原样透传
	client := &fakeLLM{steps: []fakeStep{{
		result: &llm.StreamResult{
			FinishReason: "stop",
			Usage:        &llm.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		},
	}}}

	h := newTestHandler(client, tools.NewRegistry(), []string{}, 1)
	handle := h.Run(context.Background(), nil)
	events := collectEvents(t, handle)

	var usage *Event
	for i := range events {
		if events[i].Type == EventUsage {
			usage = &events[i]
		}
	}
	require.NotNil(t, usage)
	require.NotNil(t, usage.Usage)
	assert.Equal(t, 7, usage.Usage.TotalTokens)
	assert.Nil(t, usage.Usage.TotalCostUSD, "无目录时不做计价富化")
}

func TestWordChunker(t *testing.T) {
	var words []string
	c := &wordChunker{emit: func(w string) { words = append(words, w) }}

	// 跨增量的半个词被缓冲到下一次
	c.write("hel")
	c.write("lo wor")
	c.write("ld again")
	c.flush()

	assert.Equal(t, []string{"hello ", "world ", "again"}, words)
}

func TestWordChunkerFlushEmpty(t *testing.T) {
	called := false
	c := &wordChunker{emit: func(string) { called = true }}
	c.flush()
	assert.False(t, called)
}
