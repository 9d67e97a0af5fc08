package llm

import (
	"context"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkg/errors"

	"cybertrace-ops/internal/tools"
)

// OpenAIModel 基于 OpenAI 兼容接口的模型实现（默认指向 OpenRouter）
type OpenAIModel struct {
	client openai.Client
	model  string
}

// NewOpenAIModel 创建 OpenAIModel
// 参数:
//   - apiKey: API Key
//   - baseURL: 接口地址，为空时使用 OpenAI 官方地址
//   - model: 模型名称，如 anthropic/claude-3-7-sonnet
func NewOpenAIModel(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIModel {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIModel{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}
}

// Stream 实现 Model
// 文本增量实时产出；工具调用在参数拼装完整后按出现顺序产出
func (m *OpenAIModel) Stream(ctx context.Context, req Request) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		params := openai.ChatCompletionNewParams{
			Model:       m.model,
			Messages:    openAIMessages(req),
			Temperature: openai.Float(req.Temperature),
		}
		if len(req.Tools) > 0 {
			params.Tools = openAITools(req.Tools)
		}

		stream := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		emitted := map[int]bool{}
		emit := func(index int, id, name, args string) bool {
			if emitted[index] || name == "" {
				return true
			}
			emitted[index] = true
			return yield(ToolCallEvent(ToolCall{ID: id, Name: name, Args: rawArgs(args)}), nil)
		}

		finishReason := ""
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if tc, ok := acc.JustFinishedToolCall(); ok {
				if !emit(tc.Index, tc.ID, tc.Name, tc.Arguments) {
					return
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(TextDelta(choice.Delta.Content), nil) {
					return
				}
			}
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
		}
		if err := stream.Err(); err != nil {
			yield(Event{}, errors.Wrap(err, "openai stream"))
			return
		}

		// 流结束时仍未报告完成的调用
		if len(acc.Choices) > 0 {
			for i, tc := range acc.Choices[0].Message.ToolCalls {
				if !emit(i, tc.ID, tc.Function.Name, tc.Function.Arguments) {
					return
				}
			}
		}
		yield(Finish(openAIFinishReason(finishReason, len(emitted) > 0)), nil)
	}
}

// openAIMessages 将通用消息转换为 OpenAI 消息参数
func openAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(msg.Content))
		case RoleTool:
			msgs = append(msgs, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(msg.Content))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				asst.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(rawArgs(string(tc.Args))),
						},
					},
				})
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}
	return msgs
}

// openAITools 将工具定义转换为 function tools
func openAITools(defs []tools.Definition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  openai.FunctionParameters(d.InputSchema),
		}))
	}
	return out
}

// openAIFinishReason 映射结束原因
func openAIFinishReason(reason string, hasToolCalls bool) FinishReason {
	if hasToolCalls {
		return FinishToolCalls
	}
	switch reason {
	case "length":
		return FinishLength
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "content_filter":
		return FinishError
	default:
		return FinishStop
	}
}
