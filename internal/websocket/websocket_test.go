package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/model"
	"cybertrace-ops/internal/service"
	"cybertrace-ops/pkg/jwt"
	"cybertrace-ops/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRunner 回放固定事件的对话执行器
type fakeRunner struct {
	err error
}

func (f *fakeRunner) Turn(_ context.Context, userID string, req *service.TurnRequest, sink service.TurnSink) (*service.TurnResult, error) {
	sink.ChatResolved("chat-" + userID)
	sink.Emit(agent.Event{Type: agent.EventTextDelta, Text: "echo: " + req.Messages[len(req.Messages)-1].Content})
	if f.err != nil {
		return &service.TurnResult{ChatID: "chat-" + userID}, f.err
	}
	return &service.TurnResult{
		ChatID:  "chat-" + userID,
		Reason:  "stop",
		Message: &model.Message{ID: "m-1", Role: model.MessageRoleAssistant, Content: "echo"},
	}, nil
}

type fixture struct {
	hub    *Hub
	server *httptest.Server
	jwt    *jwt.JWTService
}

func newFixture(t *testing.T, runner TurnRunner) *fixture {
	t.Helper()
	hub := NewHub(runner, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	jwtService := jwt.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour)
	router := gin.New()
	NewHandler(hub, jwtService, nil, nil).RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &fixture{hub: hub, server: server, jwt: jwtService}
}

func (f *fixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(userID, userID+"@example.com")
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return f.hub.Connections(userID) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func chatRequest(text string) map[string]any {
	return map[string]any{
		"type":       TypeChat,
		"message_id": "req-1",
		"payload":    map[string]any{"messages": []map[string]any{{"role": "user", "content": text}}},
	}
}

func TestChatOverWebSocket(t *testing.T) {
	f := newFixture(t, &fakeRunner{})
	conn := f.dial(t, "u-1")

	require.NoError(t, conn.WriteJSON(chatRequest("show bgp")))

	var types []string
	var finish map[string]any
	for range 3 {
		msg := readMessage(t, conn)
		assert.Equal(t, "req-1", msg["message_id"])
		types = append(types, msg["type"].(string))
		if msg["type"] == TypeFinish {
			finish = msg["payload"].(map[string]any)
		}
	}
	assert.Equal(t, []string{TypeChat, TypeTextDelta, TypeFinish}, types)
	require.NotNil(t, finish)
	assert.Equal(t, "stop", finish["reason"])
}

func TestChatOverWebSocket_ModelFailure(t *testing.T) {
	f := newFixture(t, &fakeRunner{err: errors.Wrap(agent.ErrModelInvocation, "boom")})
	conn := f.dial(t, "u-1")

	require.NoError(t, conn.WriteJSON(chatRequest("hi")))
	readMessage(t, conn) // chat
	readMessage(t, conn) // text-delta
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	payload := msg["payload"].(map[string]any)
	assert.Equal(t, float64(response.CodeModelInvocation), payload["code"])
}

func TestChatOverWebSocket_InvalidRequests(t *testing.T) {
	f := newFixture(t, &fakeRunner{})
	conn := f.dial(t, "u-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeChat, "payload": map[string]any{"messages": []any{}}}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "terminal:input"}))
	msg = readMessage(t, conn)
	assert.Equal(t, TypeError, msg["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeHeartbeat, "message_id": "hb"}))
	msg = readMessage(t, conn)
	assert.Equal(t, TypePong, msg["type"])
	assert.Equal(t, "hb", msg["message_id"])
}

func TestNotificationsReachAllConnections(t *testing.T) {
	f := newFixture(t, &fakeRunner{})
	first := f.dial(t, "u-1")
	second := f.dial(t, "u-1")
	require.Eventually(t, func() bool { return f.hub.Connections("u-1") == 2 }, time.Second, 5*time.Millisecond)
	other := f.dial(t, "u-2")

	f.hub.NotifyChatTitle("u-1", "c-1", "BGP audit")
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, TypeChatTitle, msg["type"])
		assert.Equal(t, map[string]any{"chat_id": "c-1", "title": "BGP audit"}, msg["payload"])
	}

	f.hub.NotifyChatDeleted("u-2", "c-9")
	msg := readMessage(t, other)
	assert.Equal(t, TypeChatDeleted, msg["type"])
}

func TestUnregisterOnDisconnect(t *testing.T) {
	f := newFixture(t, &fakeRunner{})
	conn := f.dial(t, "u-1")
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.Connections("u-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRejectsMissingOrInvalidToken(t *testing.T) {
	f := newFixture(t, &fakeRunner{})
	base := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeliver_WaitsForSlowReader(t *testing.T) {
	client := NewClient(NewHub(&fakeRunner{}, nil), nil, "u-1")
	total := cap(client.send) + 44

	done := make(chan error, 1)
	go func() {
		for i := range total {
			if err := client.deliver(NewMessage(TypeTextDelta, map[string]string{"text": strconv.Itoa(i)})); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	// 缓冲区写满后发送方等待，而不是丢弃
	require.Eventually(t, func() bool { return len(client.send) == cap(client.send) }, time.Second, 5*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("deliver returned before the reader caught up: %v", err)
	default:
	}

	for i := range total {
		var msg struct {
			Payload struct {
				Text string `json:"text"`
			} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(<-client.send, &msg))
		assert.Equal(t, strconv.Itoa(i), msg.Payload.Text)
	}
	require.NoError(t, <-done)
}

func TestDeliver_ReturnsAfterClose(t *testing.T) {
	client := NewClient(NewHub(&fakeRunner{}, nil), nil, "u-1")
	for range cap(client.send) {
		require.NoError(t, client.deliver(NewMessage(TypeTextDelta, nil)))
	}

	done := make(chan error, 1)
	go func() { done <- client.deliver(NewMessage(TypeFinish, nil)) }()
	client.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("deliver still blocked after Close")
	}
}
