// Package model 定义与数据库表对应的数据结构
package model

import "time"

// 用户状态
const (
	UserStatusDisabled int8 = 0
	UserStatusActive   int8 = 1
)

// User 用户，对应表 users
// 对话核心只用到 ID，用于标记对话归属
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"` // 小写存储
	Name         string    `gorm:"size:100" json:"name"`
	Image        *string   `gorm:"size:500" json:"image,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // bcrypt
	Status       int8      `gorm:"default:1" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Chats []Chat `gorm:"foreignKey:UserID" json:"chats,omitempty"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Active 账号是否可用
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}
