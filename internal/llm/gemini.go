package llm

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// GeminiModel 基于 Google GenAI SDK 的模型实现
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel 创建 GeminiModel
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Stream 实现 Model
func (m *GeminiModel) Stream(ctx context.Context, req Request) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		cfg := &genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(req.Temperature)),
		}
		if req.System != "" {
			cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		}
		if len(req.Tools) > 0 {
			decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
			for _, d := range req.Tools {
				decls = append(decls, &genai.FunctionDeclaration{
					Name:                 d.Name,
					Description:          d.Description,
					ParametersJsonSchema: d.InputSchema,
				})
			}
			cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}

		var (
			calls  int
			finish genai.FinishReason
		)
		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.model, geminiContents(req.Messages), cfg) {
			if err != nil {
				yield(Event{}, errors.Wrap(err, "gemini stream"))
				return
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.Content != nil {
				for _, p := range cand.Content.Parts {
					if p.FunctionCall != nil {
						args, _ := json.Marshal(p.FunctionCall.Args)
						calls++
						call := ToolCall{ID: p.FunctionCall.ID, Name: p.FunctionCall.Name, Args: rawArgs(string(args))}
						if !yield(ToolCallEvent(call), nil) {
							return
						}
						continue
					}
					if p.Text != "" && !p.Thought {
						if !yield(TextDelta(p.Text), nil) {
							return
						}
					}
				}
			}
			if cand.FinishReason != "" {
				finish = cand.FinishReason
			}
		}

		yield(Finish(geminiFinishReason(finish, calls > 0)), nil)
	}
}

// geminiContents 转换上下文消息
// 连续的工具结果合并到同一个 user content 中
func geminiContents(messages []Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Args, &args)
				part := genai.NewPartFromFunctionCall(tc.Name, args)
				part.FunctionCall.ID = tc.ID
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.ToolName, map[string]any{"output": msg.Content})
			part.FunctionResponse.ID = msg.ToolCallID
			if n := len(contents); n > 0 && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}
	return contents
}

func isFunctionResponses(c *genai.Content) bool {
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func geminiFinishReason(reason genai.FinishReason, hasToolCalls bool) FinishReason {
	if hasToolCalls {
		return FinishToolCalls
	}
	switch reason {
	case genai.FinishReasonMaxTokens:
		return FinishLength
	case "", genai.FinishReasonStop:
		return FinishStop
	default:
		return FinishError
	}
}
