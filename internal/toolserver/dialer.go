// Package toolserver 封装与外部 MCP 工具服务器的连接
// 连接的生命周期限定在一轮对话内：对话开始时建立，结束时无条件关闭
package toolserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"cybertrace-ops/internal/config"
)

var (
	// ErrToolServerUnavailable 工具服务器无法连接（未配置、启动失败、握手失败）
	ErrToolServerUnavailable = errors.New("tool server unavailable")

	// ErrNotConfigured 没有配置工具服务器的启动命令或地址，不会重试
	ErrNotConfigured = errors.New("tool server not configured")
)

// Client MCP 客户端需要提供的能力
// *client.Client 满足该接口
type Client interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer 创建尚未握手的 MCP 客户端
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
}

// DialerFunc 函数形式的 Dialer
type DialerFunc func(ctx context.Context) (Client, error)

// Dial 实现 Dialer
func (f DialerFunc) Dial(ctx context.Context) (Client, error) { return f(ctx) }

// ConfigDialer 根据配置选择传输方式
type ConfigDialer struct {
	cfg config.ToolServerConfig
}

// NewDialer 创建基于配置的 Dialer
func NewDialer(cfg config.ToolServerConfig) *ConfigDialer {
	return &ConfigDialer{cfg: cfg}
}

// Transport 返回实际使用的传输方式
// 未显式指定时：配置了 command 用 stdio，否则配置了 url 用 sse
func (d *ConfigDialer) Transport() string {
	t := strings.ToLower(strings.TrimSpace(d.cfg.Transport))
	if t != "" {
		return t
	}
	if d.cfg.Command != "" {
		return config.TransportStdio
	}
	if d.cfg.URL != "" {
		return config.TransportSSE
	}
	return ""
}

// Dial 实现 Dialer
func (d *ConfigDialer) Dial(_ context.Context) (Client, error) {
	switch d.Transport() {
	case config.TransportStdio:
		if d.cfg.Command == "" {
			return nil, errors.Wrap(ErrNotConfigured, "stdio transport requires a command")
		}
		// 子进程在此处启动
		c, err := client.NewStdioMCPClient(d.cfg.Command, d.cfg.Env, d.cfg.Args...)
		if err != nil {
			return nil, errors.Wrapf(err, "start %s", d.cfg.Command)
		}
		return c, nil

	case config.TransportSSE:
		if d.cfg.URL == "" {
			return nil, errors.Wrap(ErrNotConfigured, "sse transport requires a url")
		}
		c, err := client.NewSSEMCPClient(d.cfg.URL, client.WithHeaders(d.cfg.Headers))
		if err != nil {
			return nil, errors.Wrapf(err, "create sse client for %s", d.cfg.URL)
		}
		return c, nil

	case config.TransportHTTP:
		if d.cfg.URL == "" {
			return nil, errors.Wrap(ErrNotConfigured, "http transport requires a url")
		}
		opts := []transport.StreamableHTTPCOption{transport.WithHTTPHeaders(d.cfg.Headers)}
		if d.cfg.CallTimeout > 0 {
			opts = append(opts, transport.WithHTTPTimeout(d.cfg.CallTimeout))
		}
		c, err := client.NewStreamableHttpClient(d.cfg.URL, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "create http client for %s", d.cfg.URL)
		}
		return c, nil

	case "":
		return nil, ErrNotConfigured

	default:
		return nil, errors.Wrapf(ErrNotConfigured, "unknown transport %q", d.cfg.Transport)
	}
}
