package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/response"
)

// AuthHandler 注册、登录、登出与 Token 刷新
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register 用户注册
// @Tags 认证
// @Param body body service.RegisterRequest true "注册信息"
// @Success 201 {object} response.Response{data=service.RegisterResponse}
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		accountError(c, err, "Registration failed")
		return
	}
	response.Created(c, result)
}

// Login 用户登录
// @Tags 认证
// @Param body body service.LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=service.LoginResponse}
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Login(c.Request.Context(), &req)
	switch {
	case err == nil:
		response.Success(c, result)
	case errors.Is(err, service.ErrPasswordWrong):
		response.PasswordWrong(c)
	default:
		accountError(c, err, "Login failed")
	}
}

// Logout 将当前 Access Token 加入黑名单
// @Tags 认证
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, expireAt := middleware.GetToken(c)
	if token == "" {
		response.Unauthorized(c, "Unauthorized")
		return
	}
	exp := time.Now().Add(time.Hour)
	if expireAt != nil {
		exp = expireAt.Time
	}
	if err := h.authService.Logout(c.Request.Context(), middleware.HashToken(token), exp); err != nil {
		response.InternalError(c, "Logout failed")
		return
	}
	response.Success(c, gin.H{"success": true})
}

// RefreshToken 用 Refresh Token 换取新的 Access Token
// @Tags 认证
// @Param body body RefreshTokenRequest true "Refresh Token"
// @Success 200 {object} response.Response{data=service.RefreshTokenResponse}
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "Refresh token invalid or expired")
		return
	}
	response.Success(c, result)
}
