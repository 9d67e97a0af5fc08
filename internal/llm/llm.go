// Package llm 定义与大模型交互的边界
// 一次 Stream 调用对应模型的一个推理步骤：输出文本增量、工具调用请求，最后是结束事件
package llm

import (
	"context"
	"encoding/json"
	"iter"

	"cybertrace-ops/internal/tools"
)

// Role 模型上下文中的消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 模型请求的一次工具调用
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"` // JSON 对象
}

// Message 模型上下文中的一条消息
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // 仅 assistant
	ToolCallID string     // 仅 tool：对应的调用 ID
	ToolName   string     // 仅 tool：对应的工具名
}

// Request 一个推理步骤的输入
type Request struct {
	System      string
	Messages    []Message
	Tools       []tools.Definition
	Temperature float64
}

// EventType 流式事件类型
type EventType string

const (
	EventTextDelta EventType = "text-delta"
	EventToolCall  EventType = "tool-call"
	EventFinish    EventType = "finish"
)

// FinishReason 结束原因
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool-calls"
	FinishError     FinishReason = "error"
)

// Event 流式事件
type Event struct {
	Type     EventType
	Text     string       // EventTextDelta
	ToolCall *ToolCall    // EventToolCall
	Reason   FinishReason // EventFinish
}

// TextDelta 构造文本增量事件
func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

// ToolCallEvent 构造工具调用事件
func ToolCallEvent(call ToolCall) Event {
	return Event{Type: EventToolCall, ToolCall: &call}
}

// Finish 构造结束事件
func Finish(reason FinishReason) Event {
	return Event{Type: EventFinish, Reason: reason}
}

// Model 模型边界
// Stream 产出一个步骤的事件序列；序列中出现 error 表示调用失败，调用方应终止本轮对话
type Model interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Event, error]
}
