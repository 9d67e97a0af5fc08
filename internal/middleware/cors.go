package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders  = "Origin, Content-Type, Accept, Authorization, X-Requested-With, Last-Event-ID"
	corsExposeHeaders = "Content-Length, X-Chat-Id"
	corsMaxAge        = "86400"
)

// Origins 允许跨域访问的来源列表
// 支持三种写法: "*"、完整来源 "https://ops.example.com"、子域通配 "https://*.example.com"
// 列表为空等同于 "*"
type Origins []string

// Allows 判断来源是否被允许
// 没有 Origin 头的请求（非浏览器客户端，如 CLI）总是允许
func (o Origins) Allows(origin string) bool {
	if origin == "" || len(o) == 0 {
		return true
	}
	for _, pattern := range o {
		if pattern == "*" || pattern == origin {
			return true
		}
		if scheme, host, ok := strings.Cut(pattern, "://*."); ok {
			prefix := scheme + "://"
			if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, "."+host) {
				return true
			}
		}
	}
	return false
}

func (o Origins) wildcard() bool {
	return len(o) == 0 || (len(o) == 1 && o[0] == "*")
}

// CORSMiddleware 跨域中间件
// 允许所有来源时返回 "*" 且不携带凭据，否则回显请求的 Origin
func CORSMiddleware(origins Origins) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origins.Allows(origin) {
			h := c.Writer.Header()
			if origins.wildcard() {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}

		// 预检请求直接返回 204
		if c.Request.Method == http.MethodOptions {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
