// Package api 封装与服务器的 HTTP API 交互
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrUnauthorized 未登录或 Token 已失效
var ErrUnauthorized = errors.New("unauthorized, please run 'cybertrace login'")

// Client API 客户端
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client // 普通请求
	streamHTTP  *http.Client // SSE 请求，不设置整体超时
}

// NewClient 创建 API 客户端
// 参数:
//   - baseURL: 例如 http://localhost:8080
//   - accessToken: 需要鉴权的接口使用，可以为空
func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		streamHTTP:  &http.Client{},
	}
}

// APIResponse 通用响应
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError 服务端返回的错误
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d, code %d)", e.Message, e.Status, e.Code)
}

// Unwrap 401 时可以用 errors.Is(err, ErrUnauthorized) 判断
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// ==================== 认证 ====================

// User 用户信息
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}

// Login 使用邮箱密码登录
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var result LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout 让服务端吊销当前 Token
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// Refresh 用 Refresh Token 换取新的 Access Token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var result struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/refresh", body, &result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

// Me 获取当前用户
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/api/v1/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ==================== 对话 ====================

// Chat 对话摘要
type Chat struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message 对话消息，parts 原样保留以便回传给服务端
type Message struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Parts     json.RawMessage `json:"parts,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChatDetail 对话详情
type ChatDetail struct {
	Chat      Chat      `json:"chat"`
	Messages  []Message `json:"messages"`
	Streaming bool      `json:"streaming"`
}

// ListChats 获取对话列表
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := c.call(ctx, http.MethodGet, "/api/v1/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat 获取对话详情
func (c *Client) GetChat(ctx context.Context, id string) (*ChatDetail, error) {
	var detail ChatDetail
	if err := c.call(ctx, http.MethodGet, "/api/v1/chats/"+id, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// RenameChat 修改对话标题
func (c *Client) RenameChat(ctx context.Context, id, title string) (*Chat, error) {
	var chat Chat
	if err := c.call(ctx, http.MethodPatch, "/api/v1/chats/"+id, map[string]string{"title": title}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat 删除对话
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/chats/"+id, nil, nil)
}

// ==================== 对话轮次（SSE） ====================

// StreamEvent 一条 SSE 事件
type StreamEvent struct {
	Name string
	Data json.RawMessage
}

// AskRequest 对话请求
type AskRequest struct {
	ID       string    `json:"id,omitempty"`
	Messages []Message `json:"messages"`
}

// Ask 发送一轮对话并逐条回调 SSE 事件
// 服务端在流开始前失败时返回 *APIError
func (c *Client) Ask(ctx context.Context, req *AskRequest, onEvent func(StreamEvent) error) error {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/chat", req)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		_, err := decodeResponse(resp, nil)
		if err == nil {
			err = errors.Errorf("unexpected response content type %q", resp.Header.Get("Content-Type"))
		}
		return err
	}
	return ReadEvents(resp.Body, onEvent)
}

// ReadEvents 解析 SSE 流
func ReadEvents(r io.Reader, onEvent func(StreamEvent) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		name string
		data bytes.Buffer
	)
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if name == "" && data.Len() == 0 {
			return nil
		}
		if name == "" {
			name = "message"
		}
		return onEvent(StreamEvent{Name: name, Data: json.RawMessage(bytes.Clone(data.Bytes()))})
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read event stream")
	}
	return dispatch()
}

// ==================== 通用请求封装 ====================

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	return req, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	_, err = decodeResponse(resp, out)
	return err
}

// decodeResponse 解析统一响应结构，out 不为 nil 时解析 data
func decodeResponse(resp *http.Response, out interface{}) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrapf(err, "parse response (HTTP %d)", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || apiResp.Code != 0 {
		return nil, &APIError{Status: resp.StatusCode, Code: apiResp.Code, Message: apiResp.Message}
	}
	if out != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return nil, errors.Wrap(err, "parse response data")
		}
	}
	return &apiResp, nil
}
