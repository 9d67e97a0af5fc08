package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/cache"
	"cybertrace-ops/internal/database"
	"cybertrace-ops/internal/llm"
	"cybertrace-ops/internal/llm/llmtest"
	"cybertrace-ops/internal/model"
	"cybertrace-ops/internal/repository"
	"cybertrace-ops/internal/title"
	"cybertrace-ops/internal/toolserver"
	"cybertrace-ops/pkg/jwt"
)

const (
	alice = "8f14e45f-ceea-467f-a9f0-000000000001"
	bob   = "8f14e45f-ceea-467f-a9f0-000000000002"
)

type env struct {
	db    *gorm.DB
	mr    *miniredis.Miniredis
	cache *cache.RedisCache
	chats *ChatService
	notes *recordingNotifier
}

type recordingNotifier struct {
	mu      sync.Mutex
	titles  []string
	deleted []string
}

func (n *recordingNotifier) NotifyChatTitle(_, chatID, t string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, chatID+":"+t)
}

func (n *recordingNotifier) NotifyChatDeleted(_, chatID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, chatID)
}

func (n *recordingNotifier) titleCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	chats := NewChatService(repository.NewChatRepository(db), repository.NewMessageRepository(db), rc, nil)
	notes := &recordingNotifier{}
	chats.SetNotifier(notes)
	return &env{db: db, mr: mr, cache: rc, chats: chats, notes: notes}
}

func (e *env) conversation(m llm.Model, dialer toolserver.Dialer) *ConversationService {
	connector := toolserver.NewConnector(dialer, toolserver.Options{ConnectTimeout: 5 * time.Second}, nil)
	return NewConversationService(e.chats, connector, m, e.cache, TurnOptions{MaxSteps: 5, MaxDuration: 30 * time.Second}, nil)
}

func (e *env) messages(t *testing.T, chatID string) []model.Message {
	t.Helper()
	msgs, err := repository.NewMessageRepository(e.db).GetByChatID(context.Background(), chatID)
	require.NoError(t, err)
	return msgs
}

// collectingSink 记录事件
type collectingSink struct {
	chatID string
	events []agent.Event
}

func (s *collectingSink) ChatResolved(id string) { s.chatID = id }
func (s *collectingSink) Emit(e agent.Event)     { s.events = append(s.events, e) }

func userMsg(text string) UIMessage {
	return UIMessage{Role: model.MessageRoleUser, Content: text}
}

func suzieqDialer(closes *atomic.Int32) toolserver.Dialer {
	srv := server.NewMCPServer("suzieq-mcp", "0.1.0", server.WithToolCapabilities(false))
	srv.AddTool(
		mcp.NewTool("run_suzieq_show", mcp.WithDescription("Show a SuzieQ table"), mcp.WithString("table", mcp.Required())),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			table, _ := req.RequireString("table")
			return mcp.NewToolResultText(`[{"table":"` + table + `","state":"NotEstd"}]`), nil
		},
	)
	return toolserver.DialerFunc(func(context.Context) (toolserver.Client, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		return closeCounter{Client: c, closes: closes}, nil
	})
}

type closeCounter struct {
	toolserver.Client
	closes  *atomic.Int32
	listErr error
}

func (c closeCounter) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.Client.ListTools(ctx, req)
}

func (c closeCounter) Close() error {
	c.closes.Add(1)
	return c.Client.Close()
}

// ==================== 对话轮次 ====================

func TestTurn_NewChatPersistsMessages(t *testing.T) {
	e := newEnv(t)
	conv := e.conversation(llmtest.New(llmtest.Text("All ", "good.")), nil)

	sink := &collectingSink{}
	res, err := conv.Turn(context.Background(), alice, &TurnRequest{Messages: []UIMessage{userMsg("hi")}}, sink)
	require.NoError(t, err)
	assert.Equal(t, "stop", res.Reason)
	assert.Equal(t, res.ChatID, sink.chatID)
	assert.Len(t, sink.events, 2)

	chat, err := repository.NewChatRepository(e.db).GetByID(context.Background(), res.ChatID)
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, alice, chat.UserID)
	// "hi" 不超过 40 个字符，标题即原文
	assert.Equal(t, "hi", chat.Title)

	msgs := e.messages(t, res.ChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, "All good.", msgs[1].Content)
	assert.False(t, e.cache.IsChatStreaming(context.Background(), res.ChatID))
}

func TestTurn_ForeignChatIsRecreated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owned, err := e.chats.ResolveChat(ctx, "", bob)
	require.NoError(t, err)

	conv := e.conversation(llmtest.New(llmtest.Text("ok")), nil)
	res, err := conv.Turn(ctx, alice, &TurnRequest{ID: owned.ID, Messages: []UIMessage{userMsg("show devices")}}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, owned.ID, res.ChatID)

	// bob 的对话没有被写入
	assert.Empty(t, e.messages(t, owned.ID))
	assert.Len(t, e.messages(t, res.ChatID), 2)
}

func TestTurn_WithoutToolServer(t *testing.T) {
	e := newEnv(t)
	m := llmtest.New(
		llmtest.Calls(llmtest.Call("c1", "humanize_timestamp_tool", `{"timestamp_ms":1678881600000}`)),
		llmtest.Text("That is 2023-03-15 12:00:00 UTC."),
	)
	conv := e.conversation(m, nil)

	res, err := conv.Turn(context.Background(), alice, &TurnRequest{Messages: []UIMessage{userMsg("when is 1678881600000?")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stop", res.Reason)

	// 只有本地工具
	reqs := m.Requests()
	require.NotEmpty(t, reqs)
	var names []string
	for _, d := range reqs[0].Tools {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"humanize_timestamp_tool", "table_tool"}, names)
	require.Len(t, res.Message.Parts, 2)
	assert.Equal(t, model.ToolStateResult, res.Message.Parts[0].ToolInvocation.State)
}

func TestTurn_RemoteToolsAndTitle(t *testing.T) {
	e := newEnv(t)
	var closes atomic.Int32
	m := llmtest.New(
		llmtest.Calls(llmtest.Call("c1", "run_suzieq_show", `{"table":"bgp"}`)),
		llmtest.Text("One session is NotEstd."),
	)
	conv := e.conversation(m, suzieqDialer(&closes))

	prompt := "Show me BGP sessions in NotEstd state across all devices in the datacenter"
	res, err := conv.Turn(context.Background(), alice, &TurnRequest{Messages: []UIMessage{userMsg(prompt)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), closes.Load())

	chat, err := repository.NewChatRepository(e.db).GetByID(context.Background(), res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "Show me BGP sessions in NotEstd...", chat.Title)
	assert.Eventually(t, func() bool { return e.notes.titleCount() == 1 }, time.Second, 10*time.Millisecond)

	inv := res.Message.Parts[0].ToolInvocation
	require.NotNil(t, inv)
	assert.JSONEq(t, `[{"table":"bgp","state":"NotEstd"}]`, string(inv.Result))
}

func TestTurn_LengthFinishStillPersists(t *testing.T) {
	e := newEnv(t)
	m := llmtest.New(
		llmtest.Calls(llmtest.Call("c1", "table_tool", `{"data":[{"a":1}]}`)),
		llmtest.Calls(llmtest.Call("c2", "table_tool", `{"data":[{"b":2}]}`)),
	)
	connector := toolserver.NewConnector(nil, toolserver.Options{}, nil)
	conv := NewConversationService(e.chats, connector, m, e.cache, TurnOptions{MaxSteps: 2}, nil)

	res, err := conv.Turn(context.Background(), alice, &TurnRequest{Messages: []UIMessage{userMsg("tables")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "length", res.Reason)

	msgs := e.messages(t, res.ChatID)
	require.Len(t, msgs, 2)
	parts := msgs[1].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, model.ToolStateResult, parts[0].ToolInvocation.State)
	assert.Equal(t, model.ToolStateCall, parts[1].ToolInvocation.State)
}

func TestTurn_ModelFailureClosesLeaseOnce(t *testing.T) {
	e := newEnv(t)
	var closes atomic.Int32
	conv := e.conversation(llmtest.New(llmtest.Fail(errors.New("upstream 500"))), suzieqDialer(&closes))

	res, err := conv.Turn(context.Background(), alice, &TurnRequest{Messages: []UIMessage{userMsg("hi")}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, agent.ErrModelInvocation))
	assert.Equal(t, int32(1), closes.Load())

	// 用户消息已落库，assistant 消息没有
	msgs := e.messages(t, res.ChatID)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
}

func TestTurn_DiscoveryFailureUsesLocalTools(t *testing.T) {
	e := newEnv(t)
	var closes atomic.Int32
	inner := suzieqDialer(&closes)
	dialer := toolserver.DialerFunc(func(ctx context.Context) (toolserver.Client, error) {
		c, err := inner.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return closeCounter{Client: c, closes: new(atomic.Int32), listErr: errors.New("tools/list failed")}, nil
	})
	m := llmtest.New(llmtest.Text("Only local tools today."))
	conv := e.conversation(m, dialer)

	res, err := conv.Turn(context.Background(), alice, &TurnRequest{Messages: []UIMessage{userMsg("show bgp")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stop", res.Reason)
	assert.Equal(t, int32(1), closes.Load())

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	var names []string
	for _, d := range reqs[0].Tools {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"humanize_timestamp_tool", "table_tool"}, names)
	assert.Len(t, e.messages(t, res.ChatID), 2)
}

func TestTurn_EmptyMessages(t *testing.T) {
	e := newEnv(t)
	conv := e.conversation(llmtest.New(), nil)
	_, err := conv.Turn(context.Background(), alice, &TurnRequest{}, nil)
	assert.ErrorIs(t, err, ErrEmptyMessages)
}

// ==================== 持久化 ====================

func TestResolveChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.chats.ResolveChat(ctx, "", alice)
	require.NoError(t, err)
	assert.Equal(t, title.Placeholder, created.Title)
	assert.Equal(t, model.ChatVisibilityPrivate, created.Visibility)

	same, err := e.chats.ResolveChat(ctx, created.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)

	fresh := "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	supplied, err := e.chats.ResolveChat(ctx, fresh, alice)
	require.NoError(t, err)
	assert.Equal(t, fresh, supplied.ID)

	malformed, err := e.chats.ResolveChat(ctx, "not-a-uuid", alice)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", malformed.ID)

	foreign, err := e.chats.ResolveChat(ctx, created.ID, bob)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, foreign.ID)
	assert.Equal(t, bob, foreign.UserID)
}

func TestRecordInboundMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	chat, err := e.chats.ResolveChat(ctx, "", alice)
	require.NoError(t, err)

	// 最后一条不是 user 消息时不写入
	msg, err := e.chats.RecordInboundMessage(ctx, chat.ID, []UIMessage{userMsg("hi"), {Role: model.MessageRoleAssistant, Content: "hello"}})
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, e.messages(t, chat.ID))

	msg, err = e.chats.RecordInboundMessage(ctx, chat.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, msg)

	// 客户端 ID 被保留，重复提交不会产生第二条
	in := UIMessage{ID: "msg-client-1", Role: model.MessageRoleUser, Parts: []model.Part{model.TextPart("show "), model.TextPart("bgp")}}
	msg, err = e.chats.RecordInboundMessage(ctx, chat.ID, []UIMessage{in})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "msg-client-1", msg.ID)
	assert.Equal(t, "show bgp", msg.Content)
	_, err = e.chats.RecordInboundMessage(ctx, chat.ID, []UIMessage{in})
	require.NoError(t, err)
	assert.Len(t, e.messages(t, chat.ID), 1)

	msg, err = e.chats.RecordInboundMessage(ctx, chat.ID, []UIMessage{userMsg("no id")})
	require.NoError(t, err)
	assert.Len(t, msg.ID, 36)
}

func TestRecordInboundMessage_IDTakenByOtherChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bobChat, err := e.chats.ResolveChat(ctx, "", bob)
	require.NoError(t, err)
	aliceChat, err := e.chats.ResolveChat(ctx, "", alice)
	require.NoError(t, err)

	_, err = e.chats.RecordInboundMessage(ctx, bobChat.ID, []UIMessage{{ID: "msg-1", Role: model.MessageRoleUser, Content: "bob here"}})
	require.NoError(t, err)

	msg, err := e.chats.RecordInboundMessage(ctx, aliceChat.ID, []UIMessage{{ID: "msg-1", Role: model.MessageRoleUser, Content: "show ospf"}})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.NotEqual(t, "msg-1", msg.ID)

	aliceMsgs := e.messages(t, aliceChat.ID)
	require.Len(t, aliceMsgs, 1)
	assert.Equal(t, msg.ID, aliceMsgs[0].ID)
	assert.Equal(t, "show ospf", aliceMsgs[0].Content)

	bobMsgs := e.messages(t, bobChat.ID)
	require.Len(t, bobMsgs, 1)
	assert.Equal(t, "bob here", bobMsgs[0].Content)
}

func TestMaybeDeriveTitle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	chat, err := e.chats.ResolveChat(ctx, "", alice)
	require.NoError(t, err)

	updated, err := e.chats.MaybeDeriveTitle(ctx, chat, "   ")
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = e.chats.MaybeDeriveTitle(ctx, chat, "Check OSPF on spine01")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "Check OSPF on spine01", chat.Title)

	updated, err = e.chats.MaybeDeriveTitle(ctx, chat, "Something else")
	require.NoError(t, err)
	assert.False(t, updated)
}

// ==================== 对话管理 ====================

func TestChatCRUD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	public := "public"
	named := "Fabric audit"
	created, err := e.chats.CreateChat(ctx, alice, &CreateChatRequest{Title: &named, Visibility: &public})
	require.NoError(t, err)
	assert.Equal(t, "Fabric audit", created.Title)
	assert.Equal(t, "public", created.Visibility)

	_, err = e.chats.CreateChat(ctx, bob, nil)
	require.NoError(t, err)

	list, err := e.chats.ListChats(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = e.chats.GetChat(ctx, bob, created.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)

	renamed := "Leaf audit"
	updated, err := e.chats.UpdateChat(ctx, alice, created.ID, &UpdateChatRequest{Title: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Leaf audit", updated.Title)
	assert.Equal(t, "public", updated.Visibility)

	_, err = e.chats.RecordInboundMessage(ctx, created.ID, []UIMessage{userMsg("hi")})
	require.NoError(t, err)
	require.NoError(t, e.cache.MarkChatStreaming(ctx, created.ID, time.Minute))

	detail, err := e.chats.GetChat(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 1)
	assert.True(t, detail.Streaming)

	assert.ErrorIs(t, e.chats.DeleteChat(ctx, bob, created.ID), ErrChatNotFound)
	require.NoError(t, e.chats.DeleteChat(ctx, alice, created.ID))
	assert.Empty(t, e.messages(t, created.ID))
	assert.False(t, e.cache.IsChatStreaming(ctx, created.ID))

	_, err = e.chats.GetChat(ctx, alice, created.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestBackfillTitles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	chatRepo := repository.NewChatRepository(e.db)

	withMessage, err := e.chats.ResolveChat(ctx, "", alice)
	require.NoError(t, err)
	_, err = e.chats.RecordInboundMessage(ctx, withMessage.ID, []UIMessage{userMsg("Why is leaf02 flapping?")})
	require.NoError(t, err)

	empty, err := e.chats.ResolveChat(ctx, "", alice)
	require.NoError(t, err)

	named := "Already named"
	_, err = e.chats.CreateChat(ctx, alice, &CreateChatRequest{Title: &named})
	require.NoError(t, err)

	report, err := e.chats.BackfillTitles(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"Why is leaf02 flapping?"}, report.Titles)
	chat, _ := chatRepo.GetByID(ctx, withMessage.ID)
	assert.Equal(t, title.Placeholder, chat.Title)

	report, err = e.chats.BackfillTitles(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	chat, _ = chatRepo.GetByID(ctx, withMessage.ID)
	assert.Equal(t, "Why is leaf02 flapping?", chat.Title)
	chat, _ = chatRepo.GetByID(ctx, empty.ID)
	assert.Equal(t, title.Placeholder, chat.Title)
}

// ==================== 历史转换 ====================

func TestHistoryFromUI(t *testing.T) {
	history := HistoryFromUI([]UIMessage{
		{Role: model.MessageRoleSystem, Content: "ignored"},
		userMsg("show bgp"),
		{Role: model.MessageRoleAssistant, Content: "Checking.Done.", Parts: []model.Part{
			model.TextPart("Checking."),
			{Type: model.PartTypeToolInvocation, ToolInvocation: &model.ToolInvocation{
				State: model.ToolStateResult, ToolCallID: "c1", ToolName: "run_suzieq_show",
				Args: []byte(`{"table":"bgp"}`), Result: []byte(`"[]"`),
			}},
			{Type: model.PartTypeToolInvocation, ToolInvocation: &model.ToolInvocation{
				State: model.ToolStateCall, ToolCallID: "c2", ToolName: "run_suzieq_show",
			}},
			model.TextPart("Done."),
		}},
		userMsg("thanks"),
	})

	require.Len(t, history, 5)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, "Checking.", history[1].Content)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, history[2].Role)
	assert.Equal(t, "[]", history[2].Content)
	assert.Equal(t, "Done.", history[3].Content)
	assert.Equal(t, "thanks", history[4].Content)
}

// ==================== 认证 ====================

func TestAuthService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	jwtService := jwt.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour)
	users := repository.NewUserRepository(e.db)
	auth := NewAuthService(users, e.cache, jwtService)

	reg, err := auth.Register(ctx, &RegisterRequest{Email: "Ops@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", reg.Email)

	_, err = auth.Register(ctx, &RegisterRequest{Email: "ops@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = auth.Login(ctx, &LoginRequest{Email: "ops@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrPasswordWrong)
	_, err = auth.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrPasswordWrong)

	login, err := auth.Login(ctx, &LoginRequest{Email: "ops@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ops", login.User.Name)

	refreshed, err := auth.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	claims, err := jwtService.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, claims.UserID)

	require.NoError(t, auth.Logout(ctx, "hash", time.Now().Add(time.Hour)))
	assert.True(t, e.cache.IsTokenBlacklisted(ctx, "hash"))

	profiles := NewUserService(users)
	name := "NetOps"
	u, err := profiles.UpdateProfile(ctx, reg.UserID, &UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "NetOps", u.Name)

	assert.ErrorIs(t, profiles.ChangePassword(ctx, reg.UserID, &ChangePasswordRequest{OldPassword: "bad", NewPassword: "secret2"}), ErrPasswordWrong)
	require.NoError(t, profiles.ChangePassword(ctx, reg.UserID, &ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2"}))
	_, err = auth.Login(ctx, &LoginRequest{Email: "ops@example.com", Password: "secret2"})
	require.NoError(t, err)

	// 禁用后登录和刷新都失败
	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", reg.UserID).Update("status", model.UserStatusDisabled).Error)
	_, err = auth.Login(ctx, &LoginRequest{Email: "ops@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, ErrUserDisabled)
	_, err = auth.RefreshToken(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUserDisabled)
}
