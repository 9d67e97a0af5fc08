// Package llmtest 提供按脚本回放的模型，用于测试
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"

	"cybertrace-ops/internal/llm"
)

// ErrScriptExhausted 脚本步骤用完
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Step 一个模型步骤的回放内容
type Step struct {
	Events []llm.Event
	Err    error // 在 Events 之后产出
}

// Text 只输出文本并以 stop 结束的步骤
func Text(chunks ...string) Step {
	var evs []llm.Event
	for _, c := range chunks {
		evs = append(evs, llm.TextDelta(c))
	}
	return Step{Events: append(evs, llm.Finish(llm.FinishStop))}
}

// Call 构造工具调用事件
func Call(id, name, args string) llm.Event {
	return llm.ToolCallEvent(llm.ToolCall{ID: id, Name: name, Args: json.RawMessage(args)})
}

// Calls 以工具调用结束的步骤，可带前置文本事件
func Calls(events ...llm.Event) Step {
	return Step{Events: append(events, llm.Finish(llm.FinishToolCalls))}
}

// Fail 直接失败的步骤
func Fail(err error) Step {
	return Step{Err: err}
}

// Model 按顺序回放 Step 的模型
type Model struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
}

// New 创建脚本模型
func New(steps ...Step) *Model {
	return &Model{steps: steps}
}

// Stream 实现 llm.Model
func (m *Model) Stream(ctx context.Context, req llm.Request) iter.Seq2[llm.Event, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		step Step
		ok   bool
	)
	if len(m.steps) > 0 {
		step, m.steps, ok = m.steps[0], m.steps[1:], true
	}
	m.mu.Unlock()

	return func(yield func(llm.Event, error) bool) {
		if !ok {
			yield(llm.Event{}, ErrScriptExhausted)
			return
		}
		for _, ev := range step.Events {
			if err := ctx.Err(); err != nil {
				yield(llm.Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if step.Err != nil {
			yield(llm.Event{}, step.Err)
		}
	}
}

// Requests 返回收到的请求
func (m *Model) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}
