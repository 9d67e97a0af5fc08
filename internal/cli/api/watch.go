package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Notification 服务端通过 WebSocket 推送的消息
type Notification struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// wsURL 由 HTTP 地址推导 WebSocket 地址（http -> ws, https -> wss）
func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Watch 连接 /ws/chat 并回调收到的每条消息，直到 ctx 取消或连接断开
func (c *Client) Watch(ctx context.Context, onMessage func(Notification)) error {
	target, err := c.wsURL("/ws/chat")
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if _, decodeErr := decodeResponse(resp, nil); decodeErr != nil {
				return decodeErr
			}
		}
		return errors.Wrap(err, "connect websocket")
	}
	defer conn.Close()

	// ctx 取消时主动关闭连接，让 ReadMessage 返回
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errors.Wrap(err, "read websocket")
		}
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			continue
		}
		if strings.TrimSpace(n.Type) != "" {
			onMessage(n)
		}
	}
}
