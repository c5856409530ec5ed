package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"zhitalk-go/internal/model"
	"zhitalk-go/internal/tools"
	"zhitalk-go/pkg/catalog"
	"zhitalk-go/pkg/llm"
	"zhitalk-go/pkg/log"
)

// Kind 标识一种助手行为。闭合枚举：三种取值之外不接受其他值。
type Kind string

const (
	KindDefault       Kind = "default"
	KindResumeOpt     Kind = "resume_opt"
	KindMockInterview Kind = "mock_interview"
)

// 目录富化查询的内部超时，富化绝不能拖住响应。
const enrichTimeout = 3 * time.Second

// Handler 封装一种助手行为：系统提示词、可选工具集、步数上限。
type Handler struct {
	kind         Kind
	systemPrompt string
	model        string
	client       llm.Client
	registry     *tools.Registry
	activeTools  []string // 激活工具名单；空切片表示不携带任何工具
	stepLimit    int
	wordChunking bool
	catalog      *catalog.Cache
}

// Kind 返回该 handler 的行为类型。
func (h *Handler) Kind() Kind {
	return h.kind
}

// Run 启动一次生成，立即返回流句柄。
// 事件通道在 finish 事件之后关闭；finish 每次调用恰好触发一次，
// 出错时也不例外（错误以 error 事件上报，已产出的文本保留在结果中）。
func (h *Handler) Run(ctx context.Context, history []llm.Message) *StreamHandle {
	events := make(chan Event, 256)
	handle := &StreamHandle{
		Events: events,
		done:   make(chan struct{}),
	}

	go func() {
		result := h.generate(ctx, history, events)
		if result.Usage != nil {
			events <- Event{Type: EventUsage, Usage: result.Usage}
		}
		if result.Err != nil {
			events <- Event{Type: EventError, Message: "Oops, an error occurred!"}
		}
		events <- Event{Type: EventFinish}
		close(events)
		handle.result = result
		close(handle.done)
	}()

	return handle
}

func (h *Handler) generate(ctx context.Context, history []llm.Message, events chan<- Event) *RunResult {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: h.systemPrompt})
	messages = append(messages, history...)

	opts := &llm.ChatOptions{
		Model: h.model,
		Tools: h.registry.Definitions(h.activeTools),
	}

	var text strings.Builder
	var chunker *wordChunker
	if h.wordChunking {
		chunker = &wordChunker{emit: func(word string) {
			events <- Event{Type: EventTextDelta, Delta: word}
		}}
	}
	emitDelta := func(d llm.Delta) error {
		if d.Content == "" {
			return nil
		}
		text.WriteString(d.Content)
		if chunker != nil {
			chunker.write(d.Content)
		} else {
			events <- Event{Type: EventTextDelta, Delta: d.Content}
		}
		return nil
	}

	stepLimit := h.stepLimit
	if stepLimit <= 0 {
		stepLimit = 1
	}

	var lastUsage *llm.Usage
	var runErr error
	for step := 0; step < stepLimit; step++ {
		result, err := h.client.StreamChat(ctx, messages, opts, emitDelta)
		if err != nil {
			runErr = err
			break
		}
		if result.Usage != nil {
			lastUsage = result.Usage
		}

		if result.FinishReason != "tool_calls" || len(result.ToolCalls) == 0 {
			break
		}

		// 模型请求调用工具：同步执行，把结果回灌给模型后继续下一步。
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			events <- Event{
				Type:       EventToolCall,
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
				ToolArgs:   call.Function.Arguments,
			}
			output, execErr := h.registry.Execute(ctx, call)
			if execErr != nil {
				log.Warnf("工具执行失败 tool=%s err=%v", call.Function.Name, execErr)
				output = map[string]interface{}{"error": execErr.Error()}
			}
			events <- Event{
				Type:       EventToolResult,
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
				ToolResult: output,
			}
			payload, _ := json.Marshal(output)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}
	}
	if chunker != nil {
		chunker.flush()
	}

	return &RunResult{
		Text:  text.String(),
		Usage: h.enrichUsage(ctx, lastUsage),
		Err:   runErr,
	}
}

// enrichUsage 把原始用量换算为应用用量，并在目录可用时补充计价信息。
// 目录查询失败只降级为原始用量，绝不让富化失败影响响应。
func (h *Handler) enrichUsage(ctx context.Context, usage *llm.Usage) *model.AppUsage {
	if usage == nil {
		return nil
	}
	app := &model.AppUsage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
		ModelID:      h.model,
	}
	if h.catalog == nil {
		return app
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enrichTimeout)
	defer cancel()
	meta, ok := h.catalog.Lookup(lookupCtx, h.model)
	if !ok {
		log.Warnf("模型目录查询失败，使用原始用量 model=%s", h.model)
		return app
	}

	inputCost := float64(usage.PromptTokens) / 1e6 * meta.InputCostPerMTok
	outputCost := float64(usage.CompletionTokens) / 1e6 * meta.OutputCostPerMTok
	totalCost := inputCost + outputCost
	app.InputCostUSD = &inputCost
	app.OutputCostUSD = &outputCost
	app.TotalCostUSD = &totalCost
	if meta.ContextWindow > 0 {
		window := meta.ContextWindow
		app.ContextWindow = &window
	}
	return app
}

// wordChunker 把任意切分的文本增量重新按词边界切分后下发，
// 词与其后的空白一起输出，跨增量的半个词会被缓冲到下一次。
type wordChunker struct {
	buf  strings.Builder
	emit func(word string)
}

func (w *wordChunker) write(s string) {
	w.buf.WriteString(s)
	text := w.buf.String()

	// 最后一段可能是未完结的词，留在缓冲区
	last := strings.LastIndexFunc(text, isSpace)
	if last < 0 {
		return
	}
	complete := text[:last+1]
	w.buf.Reset()
	w.buf.WriteString(text[last+1:])

	start := 0
	for i, r := range complete {
		if isSpace(r) {
			w.emit(complete[start : i+len(string(r))])
			start = i + len(string(r))
		}
	}
	if start < len(complete) {
		w.emit(complete[start:])
	}
}

func (w *wordChunker) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\n', '\t', '\r':
		return true
	}
	return false
}
