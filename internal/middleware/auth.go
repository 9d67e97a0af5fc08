// Package middleware 提供 HTTP 请求的中间件
// 包括 JWT 认证、CORS 跨域、日志记录等
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	"cybertrace-ops/pkg/jwt"
	"cybertrace-ops/pkg/response"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextEmail    = "email"
	ContextToken    = "token"
	ContextTokenExp = "token_exp"
)

// TokenBlacklist Token 黑名单查询接口，由 cache.RedisCache 实现
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, tokenHash string) bool
}

// AuthMiddleware 创建 JWT 认证中间件
// 验证请求头中的 Bearer Token，并将用户信息存入上下文
// 参数:
//   - jwtService: JWT 服务实例，用于解析和验证 Token
//   - blacklist: Token 黑名单，用于检查已登出的 Token
//
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func AuthMiddleware(jwtService *jwt.JWTService, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从请求头获取 Authorization 字段
		// 格式: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Unauthorized")
			c.Abort() // 终止请求处理
			return
		}

		// 2. 解析 Bearer Token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "Malformed authorization header")
			c.Abort()
			return
		}
		tokenString := parts[1]

		// 3. 验证 Token（签名、过期时间、类型）
		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		// 4. 检查 Token 是否在黑名单中
		// 用户登出后，Token 会被加入黑名单
		if blacklist != nil && blacklist.IsTokenBlacklisted(c.Request.Context(), HashToken(tokenString)) {
			response.Unauthorized(c, "Token revoked, please sign in again")
			c.Abort()
			return
		}

		// 5. 将用户信息存入上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextToken, tokenString)        // 存储原始 Token，用于登出时计算哈希
		c.Set(ContextTokenExp, claims.ExpiresAt) // 存储过期时间，用于登出时设置黑名单 TTL

		c.Next()
	}
}

// HashToken 计算 Token 的 SHA256 哈希值
// 用于黑名单存储，避免存储原始 Token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// GetUserID 从上下文获取用户 ID
// 返回:
//   - string: 用户 ID，如果未认证返回空串
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetToken 从上下文获取原始 Token 及其过期时间
func GetToken(c *gin.Context) (string, *gojwt.NumericDate) {
	token := c.GetString(ContextToken)
	exp, _ := c.Get(ContextTokenExp)
	expireAt, _ := exp.(*gojwt.NumericDate)
	return token, expireAt
}
