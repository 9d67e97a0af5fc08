package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"cybertrace-ops/internal/llm"
	"cybertrace-ops/internal/tools"
)

// DefaultMaxSteps 默认的模型步数上限
const DefaultMaxSteps = 5

// Options 编排参数
type Options struct {
	MaxSteps    int     // 模型步数上限（不是工具调用次数）
	Temperature float64 // 采样温度
}

// Orchestrator 对话编排器
type Orchestrator struct {
	model  llm.Model
	opts   Options
	logger *slog.Logger
}

// NewOrchestrator 创建 Orchestrator
func NewOrchestrator(m llm.Model, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{model: m, opts: opts, logger: logger}
}

// Input 一轮对话的输入
type Input struct {
	System    string
	History   []llm.Message
	Catalogue *tools.Catalogue // 已合并的工具目录（本地优先）
}

// Run 执行一轮对话
// 每个步骤流式调用一次模型；步骤以工具调用结束且预算未耗尽时，顺序执行全部调用后进入下一步。
// 预算耗尽时模型仍请求工具，结束原因强制为 length，最后一步的调用保持 call 状态。
// 参数:
//   - ctx: 取消时模型流与工具调用一并放弃
//   - in: 历史、系统提示与工具目录
//   - sink: 事件接收方，可以为 nil
//
// 返回:
//   - *Result: 折叠后的 assistant 消息
//   - error: 模型失败时包装 ErrModelInvocation
func (o *Orchestrator) Run(ctx context.Context, in Input, sink Sink) (*Result, error) {
	if sink == nil {
		sink = discard{}
	}

	acc := NewAccumulator()
	messages := append([]llm.Message(nil), in.History...)
	defs := in.Catalogue.Definitions()

	for step := 0; ; step++ {
		req := llm.Request{
			System:      in.System,
			Messages:    messages,
			Tools:       defs,
			Temperature: o.opts.Temperature,
		}

		var (
			calls  []llm.ToolCall
			text   strings.Builder
			reason = llm.FinishStop
		)
		for ev, err := range o.model.Stream(ctx, req) {
			if err != nil {
				return nil, errors.Wrap(ErrModelInvocation, err.Error())
			}
			switch ev.Type {
			case llm.EventTextDelta:
				text.WriteString(ev.Text)
				acc.AddText(ev.Text)
				sink.Emit(Event{Type: EventTextDelta, Text: ev.Text})
			case llm.EventToolCall:
				call := *ev.ToolCall
				if call.ID == "" {
					call.ID = shortuuid.New()
				}
				if len(call.Args) == 0 {
					call.Args = json.RawMessage(`{}`)
				}
				calls = append(calls, call)
				acc.AddToolCall(call.ID, call.Name, call.Args, step)
				sink.Emit(Event{Type: EventToolCall, ToolCallID: call.ID, ToolName: call.Name, Args: call.Args, Step: step})
			case llm.EventFinish:
				reason = ev.Reason
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "turn aborted")
		}
		if reason == llm.FinishError {
			return nil, errors.Wrap(ErrModelInvocation, "model finished with error")
		}

		if len(calls) == 0 {
			return o.result(acc, reason, step+1), nil
		}
		if step+1 >= o.opts.MaxSteps {
			o.logger.Warn("step budget exhausted with pending tool calls", "steps", step+1, "pending", len(calls))
			return o.result(acc, llm.FinishLength, step+1), nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: text.String(), ToolCalls: calls})
		for _, call := range calls {
			out := o.execute(ctx, in.Catalogue, call)
			result := resultPayload(out)
			acc.SetToolResult(call.ID, result)
			sink.Emit(Event{Type: EventToolResult, ToolCallID: call.ID, ToolName: call.Name, Result: result, Step: step})
			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: out, ToolCallID: call.ID, ToolName: call.Name})
		}
	}
}

// execute 执行一次工具调用，失败以错误文本作为结果
func (o *Orchestrator) execute(ctx context.Context, catalogue *tools.Catalogue, call llm.ToolCall) string {
	entry, ok := catalogue.Lookup(call.Name)
	if !ok {
		return fmt.Sprintf("Error: tool %q not found", call.Name)
	}
	out, err := entry.Executor.Call(ctx, string(call.Args))
	if err != nil {
		o.logger.Warn("tool execution failed", "tool", call.Name, "origin", entry.Origin, "error", err)
		return "Error: " + err.Error()
	}
	return out
}

func (o *Orchestrator) result(acc *Accumulator, reason llm.FinishReason, steps int) *Result {
	if reason != llm.FinishLength {
		reason = llm.FinishStop
	}
	return &Result{
		Content: acc.Content(),
		Parts:   acc.Parts(),
		Reason:  string(reason),
		Steps:   steps,
	}
}

// resultPayload 工具输出是合法 JSON 时原样保留，否则编码为 JSON 字符串
func resultPayload(out string) json.RawMessage {
	trimmed := strings.TrimSpace(out)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(out)
	return b
}
