package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/response"
)

// SSE 事件名
const (
	EventChat   = "chat"
	EventFinish = "finish"
	EventError  = "error"
)

// HeaderChatID 本轮实际使用的对话 ID
const HeaderChatID = "X-Chat-Id"

// ConversationHandler 对话轮次请求处理器
// 以 SSE 流式返回模型输出与工具调用过程
type ConversationHandler struct {
	conversation *service.ConversationService
	logger       *slog.Logger
}

// NewConversationHandler 创建 ConversationHandler 实例
func NewConversationHandler(conversation *service.ConversationService, logger *slog.Logger) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{conversation: conversation, logger: logger}
}

// Chat 执行一轮对话
// @Summary 发送消息并以 SSE 接收回复
// @Description 事件依次为 chat、text-delta / tool-call / tool-result、finish；失败时为 error
// @Tags 对话
// @Security Bearer
// @Accept json
// @Produce text/event-stream
// @Param body body service.TurnRequest true "对话历史"
// @Router /api/v1/chat [post]
func (h *ConversationHandler) Chat(c *gin.Context) {
	var req service.TurnRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Messages) == 0 {
		response.BadRequest(c, service.ErrEmptyMessages.Error())
		return
	}

	sink := &sseSink{c: c}
	res, err := h.conversation.Turn(c.Request.Context(), middleware.GetUserID(c), &req, sink)
	if err != nil {
		h.logger.Error("chat turn failed", "chat_id", sink.chatID, "error", err)
		if !sink.started {
			// 流尚未开始，仍可返回 JSON 错误
			switch {
			case errors.Is(err, service.ErrEmptyMessages):
				response.BadRequest(c, err.Error())
			case errors.Is(err, agent.ErrModelInvocation):
				response.ModelFailed(c, "Model invocation failed")
			case errors.Is(err, context.Canceled):
				c.Status(499)
			default:
				response.InternalError(c, "Chat failed")
			}
			return
		}
		sink.send(EventError, gin.H{"message": errorMessage(err)})
		return
	}

	sink.send(EventFinish, gin.H{"reason": res.Reason, "message": res.Message})
}

// errorMessage 流式过程中暴露给客户端的错误文本
func errorMessage(err error) string {
	switch {
	case errors.Is(err, agent.ErrModelInvocation):
		return "Model invocation failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "Turn timed out"
	default:
		return "Chat failed"
	}
}

// sseSink 把对话事件写成 SSE
// 第一个事件到达时才写响应头，之前的失败仍可以返回普通 JSON 错误
type sseSink struct {
	c       *gin.Context
	chatID  string
	started bool
}

// ChatResolved 实现 service.TurnSink
func (s *sseSink) ChatResolved(chatID string) {
	s.chatID = chatID
	s.c.Header(HeaderChatID, chatID)
}

// Emit 实现 agent.Sink
func (s *sseSink) Emit(e agent.Event) {
	s.send(string(e.Type), e.Payload())
}

func (s *sseSink) send(event string, data any) {
	if !s.started {
		s.start()
	}
	s.c.SSEvent(event, data)
	s.c.Writer.Flush()
}

func (s *sseSink) start() {
	s.started = true
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.c.SSEvent(EventChat, gin.H{"id": s.chatID})
}
