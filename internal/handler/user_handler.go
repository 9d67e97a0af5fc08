package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/response"
)

// UserHandler 当前用户资料
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建 UserHandler 实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile 获取当前用户资料
// @Tags 用户
// @Security Bearer
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		accountError(c, err, "Failed to load profile")
		return
	}
	response.Success(c, user)
}

// UpdateProfile 更新显示名称或头像
// @Tags 用户
// @Security Bearer
// @Param body body service.UpdateProfileRequest true "要更新的字段"
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/users/me [patch]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		accountError(c, err, "Failed to update profile")
		return
	}
	response.Success(c, user)
}

// ChangePassword 修改密码，旧密码错误返回 400
// @Tags 用户
// @Security Bearer
// @Param body body service.ChangePasswordRequest true "密码信息"
// @Success 200 {object} response.Response
// @Router /api/v1/users/me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.userService.ChangePassword(c.Request.Context(), middleware.GetUserID(c), &req)
	switch {
	case err == nil:
		response.Success(c, gin.H{"success": true})
	case errors.Is(err, service.ErrPasswordWrong):
		response.BadRequest(c, "Current password is incorrect")
	default:
		accountError(c, err, "Failed to change password")
	}
}
