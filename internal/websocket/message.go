// Package websocket 提供 WebSocket 通信功能
// 客户端通过 /ws/chat 发起对话轮次并接收流式事件，同时接收对话标题变更与删除通知
package websocket

import (
	"encoding/json"
	"time"
)

// MessageType 消息类型常量
const (
	// 客户端 → 服务端
	TypeChat      = "chat"      // 发起一轮对话；服务端以同名消息返回实际使用的对话 ID
	TypeHeartbeat = "heartbeat" // 应用层心跳

	// 服务端 → 客户端：对话轮次事件，与 SSE 事件同名
	TypeTextDelta  = "text-delta"
	TypeToolCall   = "tool-call"
	TypeToolResult = "tool-result"
	TypeFinish     = "finish"

	// 服务端 → 客户端：通知
	TypeChatTitle   = "chat:title"   // 对话标题变更
	TypeChatDeleted = "chat:deleted" // 对话被删除

	// 通用
	TypeError = "error" // 错误消息
	TypePong  = "pong"  // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`                 // 消息类型
	Payload   interface{} `json:"payload,omitempty"`    // 消息内容
	Timestamp int64       `json:"timestamp"`            // 时间戳（毫秒）
	MessageID string      `json:"message_id,omitempty"` // 对应请求的消息ID，用于追踪
}

// inboundMessage 客户端发来的消息，payload 延迟解析
type inboundMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	MessageID string          `json:"message_id,omitempty"`
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewMessageWithID 创建带消息ID的新消息
func NewMessageWithID(msgType string, payload interface{}, messageID string) *Message {
	msg := NewMessage(msgType, payload)
	msg.MessageID = messageID
	return msg
}

// ==================== Payload 类型定义 ====================

// ChatResolvedPayload 本轮实际使用的对话
type ChatResolvedPayload struct {
	ID string `json:"id"`
}

// FinishPayload 一轮对话结束
type FinishPayload struct {
	Reason  string      `json:"reason"`  // stop | length
	Message interface{} `json:"message"` // 落库的 assistant 消息
}

// ChatTitlePayload 标题变更通知
type ChatTitlePayload struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
}

// ChatDeletedPayload 对话删除通知
type ChatDeletedPayload struct {
	ChatID string `json:"chat_id"`
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}
