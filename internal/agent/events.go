package agent

import "zhitalk-go/internal/model"

// EventType 流式事件类型。
type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
	EventUsage      EventType = "usage"
	EventFinish     EventType = "finish"
	EventError      EventType = "error"
)

// Event 是生成过程中产出的一个事件。
// usage 事件不晚于 finish 事件；finish 每次生成恰好出现一次。
type Event struct {
	Type EventType `json:"type"`

	// text-delta
	Delta string `json:"delta,omitempty"`

	// tool-call / tool-result
	ToolCallID string      `json:"toolCallId,omitempty"`
	ToolName   string      `json:"toolName,omitempty"`
	ToolArgs   string      `json:"toolArgs,omitempty"`
	ToolResult interface{} `json:"toolResult,omitempty"`

	// usage
	Usage *model.AppUsage `json:"usage,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// StreamHandle 是一次生成的消费端句柄。
// Events 通道在 finish（或 error 后的 finish）事件之后关闭，
// 之后 Result 可安全读取。
type StreamHandle struct {
	Events <-chan Event
	result *RunResult
	done   chan struct{}
}

// RunResult 汇总一次生成的最终结果，供持久化使用。
type RunResult struct {
	Text  string          // 完整回复文本（出错时为已产出的部分文本）
	Usage *model.AppUsage // 最终用量；上游未上报时为 nil
	Err   error           // 生成过程中的终止性错误
}

// Result 阻塞直到生成结束，返回最终结果。
func (h *StreamHandle) Result() *RunResult {
	<-h.done
	return h.result
}
