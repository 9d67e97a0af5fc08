package agent

import (
	"encoding/json"
	"strings"

	"cybertrace-ops/internal/model"
)

// Accumulator 把流式事件折叠为 assistant 消息的片段
// 片段只追加不重排；连续文本增量合并为一个文本片段，直到出现工具事件
type Accumulator struct {
	parts []model.Part
	calls map[string]int // toolCallId -> 片段下标
}

// NewAccumulator 创建 Accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[string]int)}
}

// AddText 追加文本增量
func (a *Accumulator) AddText(delta string) {
	if delta == "" {
		return
	}
	if n := len(a.parts); n > 0 && a.parts[n-1].Type == model.PartTypeText {
		a.parts[n-1].Text += delta
		return
	}
	a.parts = append(a.parts, model.TextPart(delta))
}

// AddToolCall 追加一个 call 状态的工具调用
func (a *Accumulator) AddToolCall(id, name string, args json.RawMessage, step int) {
	a.calls[id] = len(a.parts)
	a.parts = append(a.parts, model.Part{
		Type: model.PartTypeToolInvocation,
		ToolInvocation: &model.ToolInvocation{
			State:      model.ToolStateCall,
			ToolCallID: id,
			ToolName:   name,
			Args:       args,
			Step:       step,
		},
	})
}

// SetToolResult 将工具调用置为 result 状态，找不到对应调用时返回 false
func (a *Accumulator) SetToolResult(id string, result json.RawMessage) bool {
	i, ok := a.calls[id]
	if !ok {
		return false
	}
	inv := a.parts[i].ToolInvocation
	inv.State = model.ToolStateResult
	inv.Result = result
	return true
}

// Parts 返回片段副本
func (a *Accumulator) Parts() []model.Part {
	out := make([]model.Part, len(a.parts))
	for i, p := range a.parts {
		if p.ToolInvocation != nil {
			inv := *p.ToolInvocation
			p.ToolInvocation = &inv
		}
		out[i] = p
	}
	return out
}

// Content 所有文本片段的拼接
func (a *Accumulator) Content() string {
	var sb strings.Builder
	for _, p := range a.parts {
		if p.Type == model.PartTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
