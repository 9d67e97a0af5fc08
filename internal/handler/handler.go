// Package handler 提供 HTTP 请求处理器
// 处理器只负责参数解析和错误映射，业务逻辑在 service 层
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/response"
)

// bindJSON 解析并校验请求体，失败时已写入 400 响应
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return false
	}
	return true
}

// accountError 映射账号相关的业务错误
func accountError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrEmailExists):
		response.UserExists(c)
	case errors.Is(err, service.ErrUserNotFound):
		response.UserNotFound(c)
	case errors.Is(err, service.ErrUserDisabled):
		response.Unauthorized(c, "Account disabled")
	default:
		response.InternalError(c, fallback)
	}
}
