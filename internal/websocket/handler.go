package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cybertrace-ops/internal/middleware"
	"cybertrace-ops/pkg/jwt"
	"cybertrace-ops/pkg/response"
)

// Handler 处理 WebSocket 连接
type Handler struct {
	hub        *Hub
	jwtService *jwt.JWTService
	blacklist  middleware.TokenBlacklist
	upgrader   websocket.Upgrader
}

// NewHandler 创建 WebSocket Handler
// 参数:
//   - hub: 连接管理器
//   - jwtService: 用于校验 query 中的 Token
//   - blacklist: 已登出 Token 黑名单，可以为 nil
//   - allowedOrigins: 允许的 Origin，规则同 CORS 中间件
func NewHandler(hub *Hub, jwtService *jwt.JWTService, blacklist middleware.TokenBlacklist, allowedOrigins middleware.Origins) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		blacklist:  blacklist,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigins.Allows(r.Header.Get("Origin"))
			},
		},
	}
}

// HandleChatWS 处理对话 WebSocket 连接
// 路由: GET /ws/chat
// 参数: token (query parameter) - Access Token
func (h *Handler) HandleChatWS(c *gin.Context) {
	// 浏览器无法为 WebSocket 设置请求头，token 放在 query 中
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	claims, err := h.jwtService.ValidateAccessToken(token)
	if err != nil {
		response.Unauthorized(c, "Invalid or expired token")
		return
	}
	if h.blacklist != nil && h.blacklist.IsTokenBlacklisted(c.Request.Context(), middleware.HashToken(token)) {
		response.Unauthorized(c, "Token revoked, please sign in again")
		return
	}

	// 升级 HTTP 连接为 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := NewClient(h.hub, conn, claims.UserID)
	h.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// WebSocket 路由不需要中间件（token 在 query 中验证）
	ws := r.Group("/ws")
	{
		ws.GET("/chat", h.HandleChatWS)
	}
}
