// Package util 提供密码哈希和 ID 生成
package util

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt（DefaultCost）哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword 验证密码是否与哈希匹配
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewID 生成对话、消息、用户使用的 UUID v4
func NewID() string {
	return uuid.NewString()
}

// IsUUID 判断客户端提供的 ID 是否为合法 UUID
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}
