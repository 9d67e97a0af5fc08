package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cybertrace-ops/pkg/response"
)

// Pinger 可以探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查
type HealthHandler struct {
	db    *gorm.DB
	redis Pinger
}

// NewHealthHandler 创建 HealthHandler 实例，redis 可以为 nil
func NewHealthHandler(db *gorm.DB, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health 检查数据库与 Redis
// @Summary 健康检查
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := make(map[string]string)
	if sqlDB, err := h.db.DB(); err != nil {
		failed["database"] = err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		failed["database"] = err.Error()
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			failed["redis"] = err.Error()
		}
	}

	if len(failed) > 0 {
		response.ServiceUnavailable(c, failed)
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}
