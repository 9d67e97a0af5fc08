package toolserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybertrace-ops/internal/config"
	"cybertrace-ops/internal/tools"
)

// countingClient 统计底层 Close 调用次数，listErr 非空时列举工具失败
type countingClient struct {
	Client
	closes  *atomic.Int32
	listErr error
}

func (c countingClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.Client.ListTools(ctx, req)
}

func (c countingClient) Close() error {
	c.closes.Add(1)
	return c.Client.Close()
}

func newSuzieqServer() *server.MCPServer {
	s := server.NewMCPServer("suzieq-mcp", "0.1.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcp.NewTool("run_suzieq_show",
			mcp.WithDescription("Show a SuzieQ table"),
			mcp.WithString("table", mcp.Required()),
			mcp.WithObject("filters"),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			table, err := req.RequireString("table")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(`[{"table":"` + table + `","hostname":"leaf01"}]`), nil
		},
	)
	s.AddTool(
		mcp.NewTool("table_tool", mcp.WithDescription("remote table")),
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("remote"), nil
		},
	)
	return s
}

func inProcessDialer(closes *atomic.Int32) Dialer {
	srv := newSuzieqServer()
	return DialerFunc(func(context.Context) (Client, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		return countingClient{Client: c, closes: closes}, nil
	})
}

func TestAcquire_DiscoversRemoteTools(t *testing.T) {
	var closes atomic.Int32
	conn := NewConnector(inProcessDialer(&closes), Options{ConnectTimeout: 5 * time.Second}, nil)

	lease := conn.Acquire(context.Background())
	require.True(t, lease.Available())
	assert.ElementsMatch(t, []string{"run_suzieq_show", "table_tool"}, lease.Catalogue().Names())

	entry, ok := lease.Catalogue().Lookup("run_suzieq_show")
	require.True(t, ok)
	assert.Equal(t, tools.OriginRemote, entry.Origin)
	props, _ := entry.InputSchema["properties"].(map[string]any)
	assert.Contains(t, props, "table")

	out, err := entry.Executor.Call(context.Background(), `{"table":"bgp","filters":{"state":"NotEstd"}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"table":"bgp","hostname":"leaf01"}]`, out)

	require.NoError(t, lease.Close())
	require.NoError(t, lease.Close())
	assert.Equal(t, int32(1), closes.Load())
}

func TestRemoteTool_ServerErrorIsText(t *testing.T) {
	var closes atomic.Int32
	lease := NewConnector(inProcessDialer(&closes), Options{}, nil).Acquire(context.Background())
	defer lease.Close()

	entry, ok := lease.Catalogue().Lookup("run_suzieq_show")
	require.True(t, ok)

	out, err := entry.Executor.Call(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Error:")

	out, err = entry.Executor.Call(context.Background(), `not json`)
	require.NoError(t, err)
	assert.Contains(t, out, "arguments must be a JSON object")
}

func TestAcquire_NotConfigured(t *testing.T) {
	conn := NewConnector(NewDialer(config.ToolServerConfig{}), Options{Retries: 3}, nil)

	_, err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolServerUnavailable))

	lease := conn.Acquire(context.Background())
	assert.False(t, lease.Available())
	assert.Zero(t, lease.Catalogue().Len())
	assert.NoError(t, lease.Close())
}

func TestAcquire_NilDialer(t *testing.T) {
	lease := NewConnector(nil, Options{}, nil).Acquire(context.Background())
	assert.False(t, lease.Available())
	assert.True(t, errors.Is(lease.err, ErrToolServerUnavailable))
	assert.NoError(t, lease.Close())
}

func TestConnect_RetriesThenGivesUp(t *testing.T) {
	var attempts atomic.Int32
	dialer := DialerFunc(func(context.Context) (Client, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	})
	conn := NewConnector(dialer, Options{Retries: 1, ConnectTimeout: 10 * time.Second}, nil)

	_, err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolServerUnavailable))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestConfigDialer_Transport(t *testing.T) {
	assert.Equal(t, config.TransportStdio, NewDialer(config.ToolServerConfig{Command: "suzieq-mcp"}).Transport())
	assert.Equal(t, config.TransportSSE, NewDialer(config.ToolServerConfig{URL: "http://x/sse"}).Transport())
	assert.Equal(t, config.TransportHTTP, NewDialer(config.ToolServerConfig{Transport: "HTTP", URL: "http://x/mcp"}).Transport())
	assert.Equal(t, "", NewDialer(config.ToolServerConfig{}).Transport())

	_, err := NewDialer(config.ToolServerConfig{Transport: "sse"}).Dial(context.Background())
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestAcquire_DiscoveryFailureClosesOnce(t *testing.T) {
	var closes atomic.Int32
	srv := newSuzieqServer()
	dialer := DialerFunc(func(context.Context) (Client, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		return countingClient{Client: c, closes: &closes, listErr: errors.New("tools/list: internal error")}, nil
	})

	lease := NewConnector(dialer, Options{ConnectTimeout: 5 * time.Second}, nil).Acquire(context.Background())
	assert.False(t, lease.Available())
	assert.Zero(t, lease.Catalogue().Len())
	assert.Zero(t, closes.Load())

	require.NoError(t, lease.Close())
	require.NoError(t, lease.Close())
	assert.Equal(t, int32(1), closes.Load())
}

// roundTrip 连接测试服务器，列举并调用工具
// 等待超过连接超时后再调用，确认长连接不受握手超时影响
func roundTrip(t *testing.T, cfg config.ToolServerConfig) {
	t.Helper()
	cfg.ConnectTimeout = 300 * time.Millisecond
	conn := NewConnector(NewDialer(cfg), OptionsFromConfig(cfg), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	lease := conn.Acquire(ctx)
	defer lease.Close()
	require.True(t, lease.Available())
	assert.ElementsMatch(t, []string{"run_suzieq_show", "table_tool"}, lease.Catalogue().Names())

	time.Sleep(2 * cfg.ConnectTimeout)

	entry, ok := lease.Catalogue().Lookup("run_suzieq_show")
	require.True(t, ok)
	out, err := entry.Executor.Call(ctx, `{"table":"bgp"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"table":"bgp","hostname":"leaf01"}]`, out)
}

func TestSSETransport_RoundTrip(t *testing.T) {
	ts := server.NewTestServer(newSuzieqServer())
	defer ts.Close()

	roundTrip(t, config.ToolServerConfig{Transport: config.TransportSSE, URL: ts.URL + "/sse"})
}

func TestStreamableHTTPTransport_RoundTrip(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newSuzieqServer())
	defer ts.Close()

	roundTrip(t, config.ToolServerConfig{Transport: config.TransportHTTP, URL: ts.URL + "/mcp", CallTimeout: 5 * time.Second})
}

func TestAcquire_HungServerFallsBack(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	conn := NewConnector(
		NewDialer(config.ToolServerConfig{Transport: config.TransportSSE, URL: ts.URL + "/sse"}),
		Options{ConnectTimeout: 200 * time.Millisecond},
		nil,
	)
	start := time.Now()
	lease := conn.Acquire(context.Background())
	defer lease.Close()

	assert.False(t, lease.Available())
	assert.True(t, errors.Is(lease.err, ErrToolServerUnavailable))
	assert.Less(t, time.Since(start), 5*time.Second)
}
