// Package agent 驱动一轮对话：把历史、工具目录和系统提示交给模型，
// 按需顺序执行工具调用，并把流式输出折叠成一条 assistant 消息
package agent

import (
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"

	"cybertrace-ops/internal/model"
)

// DefaultSystemPrompt 默认系统提示（SuzieQ 网络可观测性助手）
//
//go:embed system_prompt.md
var DefaultSystemPrompt string

// ErrModelInvocation 模型调用失败，本轮对话终止
var ErrModelInvocation = errors.New("model invocation failed")

// EventType 推送给调用方的事件类型
type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
)

// Event 一轮对话过程中产生的流式事件
type Event struct {
	Type       EventType
	Text       string
	ToolCallID string
	ToolName   string
	Args       json.RawMessage
	Result     json.RawMessage
	Step       int
}

// Payload 事件的线上表示
func (e Event) Payload() map[string]any {
	switch e.Type {
	case EventTextDelta:
		return map[string]any{"text": e.Text}
	case EventToolCall:
		return map[string]any{"toolCallId": e.ToolCallID, "toolName": e.ToolName, "args": e.Args, "step": e.Step}
	default:
		return map[string]any{"toolCallId": e.ToolCallID, "toolName": e.ToolName, "result": e.Result, "step": e.Step}
	}
}

// Sink 事件接收方（SSE、WebSocket 等传输层）
type Sink interface {
	Emit(Event)
}

// SinkFunc 函数适配器
type SinkFunc func(Event)

// Emit 实现 Sink
func (f SinkFunc) Emit(e Event) { f(e) }

// discard 丢弃所有事件
type discard struct{}

func (discard) Emit(Event) {}

// Result 一轮对话的输出
type Result struct {
	Content string       // 所有文本片段的拼接
	Parts   []model.Part // 按到达顺序折叠的片段
	Reason  string       // stop | length
	Steps   int          // 实际执行的模型步数
}
