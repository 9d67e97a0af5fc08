// Package logger 根据配置构建 slog 日志实例
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"cybertrace-ops/internal/config"
)

// New 创建日志实例
// 参数:
//   - cfg: 日志配置，level 为 debug/info/warn/error，format 为 json/text
//   - w: 输出目标，nil 时写到标准错误
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level), ReplaceAttr: flattenError}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// flattenError 错误只输出消息文本
// text 格式默认按 %+v 打印，会带出 pkg/errors 的调用栈
func flattenError(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = slog.StringValue(err.Error())
	}
	return a
}

// Setup 创建日志实例并设置为全局默认
func Setup(cfg config.LogConfig) *slog.Logger {
	l := New(cfg, nil)
	slog.SetDefault(l)
	return l
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
