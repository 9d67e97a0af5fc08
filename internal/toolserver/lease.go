package toolserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"cybertrace-ops/internal/config"
	"cybertrace-ops/internal/tools"
)

const (
	clientName    = "cybertrace-ops"
	clientVersion = "1.0.0"
)

// Options 连接参数
type Options struct {
	ConnectTimeout time.Duration // 建连握手的总超时，列举工具另计同样时长
	CallTimeout    time.Duration // 单次工具调用超时
	Retries        int           // 失败后的重试次数
}

// OptionsFromConfig 从配置构建连接参数
func OptionsFromConfig(cfg config.ToolServerConfig) Options {
	return Options{
		ConnectTimeout: cfg.ConnectTimeout,
		CallTimeout:    cfg.CallTimeout,
		Retries:        cfg.Retries,
	}
}

// Connector 负责为每轮对话建立工具服务器连接
type Connector struct {
	dialer Dialer
	opts   Options
	logger *slog.Logger
}

// NewConnector 创建 Connector
// 参数:
//   - dialer: 客户端构建方式，nil 表示未配置工具服务器
//   - opts: 连接参数
//   - logger: 日志
func NewConnector(dialer Dialer, opts Options, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{dialer: dialer, opts: opts, logger: logger}
}

// Connect 建立连接并完成 MCP 握手
// 失败时返回的错误都包装了 ErrToolServerUnavailable
// 传输层的长连接挂在 ctx 上，ConnectTimeout 只约束建连与握手
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	if c.dialer == nil {
		return nil, errors.Wrap(ErrToolServerUnavailable, ErrNotConfigured.Error())
	}

	connectCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	attempt := func() (*Session, error) {
		cli, err := c.dialer.Dial(connectCtx)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		// 握手超时则断开流；握手完成后解除关联，流随 ctx 或 Session.Close 结束
		streamCtx, stopStream := context.WithCancel(ctx)
		detach := context.AfterFunc(connectCtx, stopStream)
		fail := func(err error, msg string) (*Session, error) {
			detach()
			stopStream()
			_ = cli.Close()
			return nil, errors.Wrap(err, msg)
		}

		if err := cli.Start(streamCtx); err != nil {
			return fail(err, "start transport")
		}
		req := mcp.InitializeRequest{}
		req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
		if _, err := cli.Initialize(connectCtx, req); err != nil {
			return fail(err, "initialize")
		}
		if !detach() {
			return fail(connectCtx.Err(), "initialize")
		}
		return newSession(cli, c.opts.CallTimeout, stopStream), nil
	}

	retries := c.opts.Retries
	if retries < 0 {
		retries = 0
	}
	session, err := backoff.Retry(connectCtx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(retries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("tool server connect failed, retrying", "error", err, "backoff", next)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(ErrToolServerUnavailable, err.Error())
	}
	return session, nil
}

func (c *Connector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.ConnectTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.ConnectTimeout)
	}
	return context.WithCancel(ctx)
}

// Acquire 为一轮对话获取工具服务器租约，不会失败
// 连接或列举工具失败时记录警告，返回外部目录为空的租约，对话仍可只用本地工具继续
func (c *Connector) Acquire(ctx context.Context) *Lease {
	lease := &Lease{catalogue: tools.NewCatalogue(), logger: c.logger}

	session, err := c.Connect(ctx)
	if err != nil {
		c.logger.Warn("tool server unavailable, continuing with local tools only", "error", err)
		lease.err = err
		return lease
	}
	lease.session = session

	listCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	catalogue, err := session.Catalogue(listCtx)
	if err != nil {
		c.logger.Warn("tool discovery failed, continuing with local tools only", "error", err)
		lease.err = err
		return lease
	}
	lease.catalogue = catalogue
	c.logger.Debug("tool server connected", "tools", catalogue.Names())
	return lease
}

// Lease 一轮对话对工具服务器连接的占用
// 无论对话成功与否都必须调用 Close，底层连接只会被关闭一次
type Lease struct {
	session   *Session
	catalogue *tools.Catalogue
	err       error
	logger    *slog.Logger

	once sync.Once
}

// Catalogue 远程工具目录，不可用时为空目录
func (l *Lease) Catalogue() *tools.Catalogue {
	return l.catalogue
}

// Available 是否成功连接并获取了工具列表
func (l *Lease) Available() bool {
	return l.session != nil && l.err == nil
}

// Close 释放连接
func (l *Lease) Close() error {
	var err error
	l.once.Do(func() {
		if l.session == nil {
			return
		}
		if err = l.session.Close(); err != nil {
			l.logger.Warn("failed to close tool server connection", "error", err)
		}
	})
	return err
}
