// Package response 提供统一的 HTTP 响应格式 {code, message, data}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构，code 为 0 表示成功
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 业务状态码
const (
	CodeSuccess         = 0
	CodeBadRequest      = 1000
	CodeUnauthorized    = 1001
	CodeInternalError   = 1004
	CodeUnavailable     = 1005 // 依赖服务（数据库、Redis）不可用
	CodeUserExists      = 1101
	CodeUserNotFound    = 1102
	CodePasswordWrong   = 1103
	CodeChatNotFound    = 1301
	CodeModelInvocation = 1401 // 模型调用失败
)

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, CodeSuccess, "success", data)
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, CodeSuccess, "created", data)
}

// BadRequest 400，message 为参数校验错误
func BadRequest(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, CodeBadRequest, message, nil)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	write(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// InternalError 500
func InternalError(c *gin.Context, message string) {
	write(c, http.StatusInternalServerError, CodeInternalError, message, nil)
}

// UserExists 409 邮箱已注册
func UserExists(c *gin.Context) {
	write(c, http.StatusConflict, CodeUserExists, "Email already registered", nil)
}

// UserNotFound 404
func UserNotFound(c *gin.Context) {
	write(c, http.StatusNotFound, CodeUserNotFound, "User not found", nil)
}

// PasswordWrong 401，不区分邮箱不存在和密码错误
func PasswordWrong(c *gin.Context) {
	write(c, http.StatusUnauthorized, CodePasswordWrong, "Invalid email or password", nil)
}

// ChatNotFound 404
// 不存在与不属于当前用户统一返回 404，避免泄露对话是否存在
func ChatNotFound(c *gin.Context) {
	write(c, http.StatusNotFound, CodeChatNotFound, "Chat not found", nil)
}

// ModelFailed 500，仅用于流式输出开始之前
func ModelFailed(c *gin.Context, message string) {
	write(c, http.StatusInternalServerError, CodeModelInvocation, message, nil)
}

// ServiceUnavailable 503，data 携带失败的组件
func ServiceUnavailable(c *gin.Context, data interface{}) {
	write(c, http.StatusServiceUnavailable, CodeUnavailable, "unavailable", data)
}
