package handler

import (
	"github.com/gin-gonic/gin"

	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/pkg/jwt"
)

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Chat         *ChatHandler
	Conversation *ConversationHandler
	Health       *HealthHandler
}

// RegisterRoutes 注册所有 HTTP 路由
// WebSocket 路由由 websocket.Handler 自行注册
func RegisterRoutes(router *gin.Engine, jwtService *jwt.JWTService, blacklist middleware.TokenBlacklist, h Handlers) {
	// 健康检查
	router.GET("/health", h.Health.Health)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	authRequired := middleware.AuthMiddleware(jwtService, blacklist)

	// 认证相关（无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.RefreshToken)
		auth.POST("/logout", authRequired, h.Auth.Logout) // 需要拿到当前 Token
	}

	// 用户相关（需要登录）
	users := v1.Group("/users")
	users.Use(authRequired)
	{
		users.GET("/me", h.User.GetProfile)
		users.PATCH("/me", h.User.UpdateProfile)
		users.PUT("/me/password", h.User.ChangePassword)
	}

	// 对话轮次（SSE）
	v1.POST("/chat", authRequired, h.Conversation.Chat)

	// 对话管理（需要登录）
	chats := v1.Group("/chats")
	chats.Use(authRequired)
	{
		chats.GET("", h.Chat.ListChats)
		chats.POST("", h.Chat.CreateChat)
		chats.GET("/:id", h.Chat.GetChat)
		chats.PATCH("/:id", h.Chat.UpdateChat)
		chats.DELETE("/:id", h.Chat.DeleteChat)
	}
}
