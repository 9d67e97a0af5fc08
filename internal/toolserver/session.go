package toolserver

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"cybertrace-ops/internal/tools"
)

// Session 一个已完成握手的工具服务器连接
type Session struct {
	client      Client
	callTimeout time.Duration
	stopStream  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func newSession(c Client, callTimeout time.Duration, stopStream context.CancelFunc) *Session {
	if stopStream == nil {
		stopStream = func() {}
	}
	return &Session{client: c, callTimeout: callTimeout, stopStream: stopStream}
}

// ListTools 获取服务器公布的工具列表
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.Wrap(err, "list tools")
	}
	return res.Tools, nil
}

// Catalogue 将服务器工具列表转换为工具目录，执行器委托给本连接
func (s *Session) Catalogue(ctx context.Context) (*tools.Catalogue, error) {
	list, err := s.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]tools.Entry, 0, len(list))
	for _, t := range list {
		entries = append(entries, tools.Entry{
			Definition: tools.DefinitionFromMCP(t),
			Origin:     tools.OriginRemote,
			Executor:   &remoteTool{session: s, name: t.Name, description: t.Description},
		})
	}
	return tools.NewCatalogue(entries...), nil
}

// CallTool 调用远程工具
// 服务器返回 isError 时以错误文本作为结果；只有传输层失败才返回 error
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", errors.Wrapf(err, "call tool %s", name)
	}

	text := resultText(res)
	if res.IsError {
		return "Error: " + text, nil
	}
	return text, nil
}

// Close 关闭连接，多次调用只会真正关闭一次
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
		s.stopStream()
	})
	return s.closeErr
}

// resultText 提取工具结果中的文本
// 文本内容按行拼接；没有文本时退回结构化内容的 JSON
func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if b, err := json.Marshal(c); err == nil {
			parts = append(parts, string(b))
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if b, err := json.Marshal(res.StructuredContent); err == nil {
			return string(b)
		}
	}
	return strings.Join(parts, "\n")
}

// remoteTool 以 tools.Tool 形式暴露远程工具
type remoteTool struct {
	session     *Session
	name        string
	description string
}

func (t *remoteTool) Name() string        { return t.name }
func (t *remoteTool) Description() string { return t.description }

// Call 输入为 JSON 参数对象
func (t *remoteTool) Call(ctx context.Context, input string) (string, error) {
	args := map[string]any{}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return "Error: arguments must be a JSON object: " + err.Error(), nil
		}
	}
	return t.session.CallTool(ctx, t.name, args)
}
