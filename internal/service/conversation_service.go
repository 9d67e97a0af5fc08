package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/cache"
	"cybertrace-ops/internal/llm"
	"cybertrace-ops/internal/model"
	"cybertrace-ops/internal/tools"
	"cybertrace-ops/internal/toolserver"
)

// ErrEmptyMessages 请求中没有消息
var ErrEmptyMessages = errors.New("messages must not be empty")

// TurnOptions 对话轮次参数
type TurnOptions struct {
	SystemPrompt string
	MaxSteps     int
	Temperature  float64
	MaxDuration  time.Duration // 单轮最长耗时，0 表示不限制
}

// TurnRequest 一轮对话的请求
type TurnRequest struct {
	ID       string      `json:"id"`       // 对话 ID，可选
	Messages []UIMessage `json:"messages"` // 完整的对话历史，最后一条通常是新的用户消息
}

// TurnResult 一轮对话的结果
type TurnResult struct {
	ChatID  string         `json:"chat_id"`
	Reason  string         `json:"reason"` // stop | length
	Message *model.Message `json:"message"`
}

// TurnSink 轮次事件接收方
// ChatResolved 在任何流式事件之前调用，告知本轮实际使用的对话 ID
type TurnSink interface {
	agent.Sink
	ChatResolved(chatID string)
}

// ConversationService 对话轮次服务
// 串起持久化、工具服务器租约、工具目录合并与编排器
type ConversationService struct {
	chats     *ChatService
	connector *toolserver.Connector
	local     *tools.Catalogue
	model     llm.Model
	cache     *cache.RedisCache
	opts      TurnOptions
	logger    *slog.Logger
}

// NewConversationService 创建 ConversationService 实例
// 参数:
//   - chats: 对话持久化
//   - connector: 外部工具服务器连接器
//   - m: 模型
//   - redisCache: 用于对话进行中标记，可以为 nil
//   - opts: 轮次参数
//   - logger: 日志
func NewConversationService(
	chats *ChatService,
	connector *toolserver.Connector,
	m llm.Model,
	redisCache *cache.RedisCache,
	opts TurnOptions,
	logger *slog.Logger,
) *ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = agent.DefaultSystemPrompt
	}
	return &ConversationService{
		chats:     chats,
		connector: connector,
		local:     tools.Local(),
		model:     m,
		cache:     redisCache,
		opts:      opts,
		logger:    logger,
	}
}

// Turn 执行一轮对话
// 流程:
//  1. 解析（或新建）对话并记录用户消息，必要时生成标题
//  2. 获取工具服务器租约，合并本地与远程工具目录
//  3. 由编排器驱动模型并把事件推给 sink
//  4. 以 stop 或 length 结束时记录 assistant 消息
//
// 租约在任何退出路径上都只关闭一次。模型失败时返回包装了 agent.ErrModelInvocation 的错误。
func (s *ConversationService) Turn(ctx context.Context, userID string, req *TurnRequest, sink TurnSink) (*TurnResult, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, ErrEmptyMessages
	}
	if s.opts.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.MaxDuration)
		defer cancel()
	}

	chat, err := s.chats.ResolveChat(ctx, req.ID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve chat")
	}
	result := &TurnResult{ChatID: chat.ID}
	if sink != nil {
		sink.ChatResolved(chat.ID)
	}

	inbound, err := s.chats.RecordInboundMessage(ctx, chat.ID, req.Messages)
	if err != nil {
		s.logger.Error("failed to persist user message", "chat_id", chat.ID, "error", err)
	}
	if inbound != nil {
		if _, err := s.chats.MaybeDeriveTitle(ctx, chat, inbound.Content); err != nil {
			s.logger.Error("failed to update chat title", "chat_id", chat.ID, "error", err)
		}
	}

	s.markStreaming(ctx, chat.ID)
	defer s.clearStreaming(context.WithoutCancel(ctx), chat.ID)

	lease := s.connector.Acquire(ctx)
	defer lease.Close()

	catalogue, shadowed := tools.Merge(s.local, lease.Catalogue())
	if len(shadowed) > 0 {
		s.logger.Warn("remote tools shadowed by local tools", "tools", shadowed)
	}
	s.logger.Debug("tool catalogue ready",
		"chat_id", chat.ID,
		"tool_server", lease.Available(),
		"tools", catalogue.Len(),
	)

	orchestrator := agent.NewOrchestrator(s.model, agent.Options{
		MaxSteps:    s.opts.MaxSteps,
		Temperature: s.opts.Temperature,
	}, s.logger)

	var agentSink agent.Sink
	if sink != nil {
		agentSink = sink
	}
	res, err := orchestrator.Run(ctx, agent.Input{
		System:    s.opts.SystemPrompt,
		History:   HistoryFromUI(req.Messages),
		Catalogue: catalogue,
	}, agentSink)
	if err != nil {
		return result, err
	}

	// 客户端断开后依然落库
	result.Reason = res.Reason
	result.Message = s.chats.RecordOutboundMessage(context.WithoutCancel(ctx), chat.ID, res)
	return result, nil
}

func (s *ConversationService) markStreaming(ctx context.Context, chatID string) {
	if s.cache == nil {
		return
	}
	ttl := 2 * s.opts.MaxDuration
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.cache.MarkChatStreaming(ctx, chatID, ttl); err != nil {
		s.logger.Warn("failed to set streaming marker", "chat_id", chatID, "error", err)
	}
}

func (s *ConversationService) clearStreaming(ctx context.Context, chatID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ClearChatStreaming(ctx, chatID); err != nil {
		s.logger.Warn("failed to clear streaming marker", "chat_id", chatID, "error", err)
	}
}

// HistoryFromUI 把客户端消息历史转换为模型上下文
// assistant 消息中已有结果的工具调用还原为 assistant 调用 + tool 结果；未完成的调用被丢弃。
// system 消息由服务端的系统提示词代替，不进入上下文。
func HistoryFromUI(messages []UIMessage) []llm.Message {
	var out []llm.Message
	for _, m := range messages {
		switch m.Role {
		case model.MessageRoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Text()})
		case model.MessageRoleAssistant:
			out = append(out, assistantHistory(m)...)
		}
	}
	return out
}

func assistantHistory(m UIMessage) []llm.Message {
	hasTools := false
	for _, p := range m.Parts {
		if p.Type == model.PartTypeToolInvocation {
			hasTools = true
			break
		}
	}
	if !hasTools {
		return []llm.Message{{Role: llm.RoleAssistant, Content: m.Text()}}
	}

	var (
		out     []llm.Message
		text    strings.Builder
		calls   []llm.ToolCall
		results []llm.Message
	)
	flush := func() {
		if text.Len() == 0 && len(calls) == 0 {
			return
		}
		out = append(out, llm.Message{Role: llm.RoleAssistant, Content: text.String(), ToolCalls: calls})
		out = append(out, results...)
		text.Reset()
		calls, results = nil, nil
	}

	for _, p := range m.Parts {
		switch p.Type {
		case model.PartTypeText:
			if len(calls) > 0 {
				flush()
			}
			text.WriteString(p.Text)
		case model.PartTypeToolInvocation:
			inv := p.ToolInvocation
			if inv == nil || inv.State != model.ToolStateResult {
				continue
			}
			args := inv.Args
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, llm.ToolCall{ID: inv.ToolCallID, Name: inv.ToolName, Args: args})
			results = append(results, llm.Message{
				Role:       llm.RoleTool,
				Content:    resultText(inv.Result),
				ToolCallID: inv.ToolCallID,
				ToolName:   inv.ToolName,
			})
		}
	}
	flush()
	return out
}

// resultText 工具结果为 JSON 字符串时取其内容，否则保留 JSON 文本
func resultText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
