package model

import (
	"time"
)

// ChatVisibility 对话可见性常量
const (
	ChatVisibilityPrivate = "private" // 仅自己可见
	ChatVisibilityPublic  = "public"  // 公开
)

// Chat 对话模型
// 对应数据库表 chats
// 首条消息到达且未提供 ID 时创建，只有用户显式删除时才会移除
type Chat struct {
	// ID 对话唯一标识，UUID 字符串
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// UserID 所属用户ID，外键关联 users.id
	UserID string `gorm:"size:36;index;not null" json:"user_id"`

	// Title 对话标题
	// 首条用户消息到达前为占位标题 "New Chat"
	Title string `gorm:"size:255;not null" json:"title"`

	// Visibility 可见性
	// private: 仅所有者可见
	// public: 公开
	Visibility string `gorm:"size:20;default:private" json:"visibility"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// User 所属用户（多对一关系）
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Messages 对话中的所有消息（一对多关系），删除对话时级联删除
	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}
