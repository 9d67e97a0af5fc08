package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/response"
)

// TurnRunner 执行一轮对话，由 service.ConversationService 实现
type TurnRunner interface {
	Turn(ctx context.Context, userID string, req *service.TurnRequest, sink service.TurnSink) (*service.TurnResult, error)
}

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理所有客户端连接（一个用户可以有多个连接）
// 2. 在连接上执行对话轮次
// 3. 向用户的所有连接推送对话通知
type Hub struct {
	// 客户端映射：userID -> []*Client
	clients map[string][]*Client

	// 注册通道
	register chan *Client

	// 注销通道
	unregister chan *Client

	// Run 退出后关闭，之后的注册与注销直接处理
	done chan struct{}

	// 互斥锁，保护 clients 的读取；写入只发生在 Run 循环中
	mu sync.RWMutex

	conversation TurnRunner
	logger       *slog.Logger
}

// NewHub 创建 Hub 实例
func NewHub(conversation TurnRunner, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:      make(map[string][]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		conversation: conversation,
		logger:       logger,
	}
}

// Run 启动 Hub 的主循环，ctx 取消时关闭所有连接并返回
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return nil
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.userID] = append(h.clients[client.userID], client)
	h.logger.Info("websocket client registered", "user_id", client.userID, "connections", len(h.clients[client.userID]))
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients := h.clients[client.userID]
	for i, c := range clients {
		if c == client {
			h.clients[client.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	// 如果没有连接了，删除 key
	if len(h.clients[client.userID]) == 0 {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()

	h.logger.Info("websocket client unregistered", "user_id", client.userID)
	client.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.clients {
		for _, c := range clients {
			c.Close()
		}
		delete(h.clients, userID)
	}
}

// Register 注册客户端（供外部调用）
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister 注销客户端（供外部调用）
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// Connections 返回用户当前的连接数
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// notifyUser 向用户的所有连接发送消息
func (h *Hub) notifyUser(userID string, msg *Message) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[userID]...)
	h.mu.RUnlock()

	for _, client := range clients {
		client.SendMessage(msg)
	}
}

// NotifyChatTitle 实现 service.ChatNotifier
func (h *Hub) NotifyChatTitle(userID, chatID, title string) {
	h.notifyUser(userID, NewMessage(TypeChatTitle, &ChatTitlePayload{ChatID: chatID, Title: title}))
}

// NotifyChatDeleted 实现 service.ChatNotifier
func (h *Hub) NotifyChatDeleted(userID, chatID string) {
	h.notifyUser(userID, NewMessage(TypeChatDeleted, &ChatDeletedPayload{ChatID: chatID}))
}

// handleChat 在客户端连接上执行一轮对话
// 事件按 SSE 相同的顺序发送：chat、流式事件、finish 或 error
func (h *Hub) handleChat(client *Client, msg *inboundMessage) {
	var req service.TurnRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		client.deliver(NewMessageWithID(TypeError, &ErrorPayload{Code: response.CodeBadRequest, Message: "Invalid chat payload"}, msg.MessageID))
		return
	}
	if len(req.Messages) == 0 {
		client.deliver(NewMessageWithID(TypeError, &ErrorPayload{Code: response.CodeBadRequest, Message: service.ErrEmptyMessages.Error()}, msg.MessageID))
		return
	}

	client.turnMu.Lock()
	defer client.turnMu.Unlock()

	sink := &clientSink{client: client, messageID: msg.MessageID}
	res, err := h.conversation.Turn(client.ctx, client.userID, &req, sink)
	if err != nil {
		h.logger.Error("chat turn failed", "user_id", client.userID, "chat_id", sink.chatID, "error", err)
		code := response.CodeInternalError
		message := "Chat failed"
		if errors.Is(err, agent.ErrModelInvocation) {
			code, message = response.CodeModelInvocation, "Model invocation failed"
		}
		client.deliver(NewMessageWithID(TypeError, &ErrorPayload{Code: code, Message: message}, msg.MessageID))
		return
	}
	client.deliver(NewMessageWithID(TypeFinish, &FinishPayload{Reason: res.Reason, Message: res.Message}, msg.MessageID))
}

// clientSink 把对话事件转发到客户端连接
type clientSink struct {
	client    *Client
	messageID string
	chatID    string
}

// ChatResolved 实现 service.TurnSink
func (s *clientSink) ChatResolved(chatID string) {
	s.chatID = chatID
	s.client.deliver(NewMessageWithID(TypeChat, &ChatResolvedPayload{ID: chatID}, s.messageID))
}

// Emit 实现 agent.Sink
func (s *clientSink) Emit(e agent.Event) {
	s.client.deliver(NewMessageWithID(string(e.Type), e.Payload(), s.messageID))
}
