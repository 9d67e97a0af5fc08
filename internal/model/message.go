package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
	MessageRoleSystem    = "system"    // 系统消息
)

// PartType 消息片段类型
const (
	PartTypeText           = "text"
	PartTypeToolInvocation = "tool-invocation"
)

// ToolState 工具调用状态
const (
	ToolStatePartialCall = "partial-call" // 参数仍在生成
	ToolStateCall        = "call"         // 已请求，尚未执行
	ToolStateResult      = "result"       // 已得到结果
)

// ToolInvocation 一次工具调用
type ToolInvocation struct {
	State      string          `json:"state"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
	Result     json.RawMessage `json:"result,omitempty"` // 仅 result 状态
	Step       int             `json:"step"`
}

// Part 消息片段，文本或工具调用
type Part struct {
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	ToolInvocation *ToolInvocation `json:"toolInvocation,omitempty"`
}

// TextPart 构造文本片段
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// Message 消息模型
// 对应数据库表 messages
// 消息一经写入不再修改，按 created_at 排序即可还原整段对话（含工具调用与结果）
type Message struct {
	// ID 消息唯一标识，UUID 字符串，客户端可以自带
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// ChatID 所属对话ID，外键关联 chats.id
	ChatID string `gorm:"size:36;index;not null" json:"chat_id"`

	// Role 消息角色
	// user: 用户发送的消息
	// assistant: AI 助手的响应
	// system: 系统消息
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息文本，assistant 消息为所有文本片段的拼接
	Content string `gorm:"type:text;not null" json:"content"`

	// Parts 有序的消息片段（JSON 列）
	Parts datatypes.JSONSlice[Part] `json:"parts"`

	// Attachments 附件元数据（JSON 列），可选
	Attachments datatypes.JSON `json:"attachments,omitempty"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Chat 所属对话（多对一关系）
	Chat *Chat `gorm:"foreignKey:ChatID" json:"chat,omitempty"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
