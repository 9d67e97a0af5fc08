package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"cybertrace-ops/internal/agent"
	"cybertrace-ops/internal/cache"
	"cybertrace-ops/internal/model"
	"cybertrace-ops/internal/repository"
	"cybertrace-ops/internal/title"
	"cybertrace-ops/pkg/util"
)

// ChatNotifier 对话变更通知接口，由 WebSocket Hub 实现
type ChatNotifier interface {
	NotifyChatTitle(userID, chatID, title string)
	NotifyChatDeleted(userID, chatID string)
}

// 对话服务相关错误
var (
	ErrChatNotFound = errors.New("chat not found")
)

// maxMessageIDLen 客户端消息 ID 的最大长度，与列宽一致
const maxMessageIDLen = 36

// ChatService 对话服务
// 负责对话与消息的持久化：解析对话身份与归属、记录收发消息、生成标题
type ChatService struct {
	chatRepo    *repository.ChatRepository    // 对话数据访问层
	messageRepo *repository.MessageRepository // 消息数据访问层
	cache       *cache.RedisCache             // Redis 缓存，可以为 nil
	notifier    ChatNotifier                  // 对话通知器
	logger      *slog.Logger
}

// NewChatService 创建 ChatService 实例
func NewChatService(
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	cache *cache.RedisCache,
	logger *slog.Logger,
) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		cache:       cache,
		logger:      logger,
	}
}

// SetNotifier 设置通知器
func (s *ChatService) SetNotifier(n ChatNotifier) {
	s.notifier = n
}

// UIMessage 客户端提交的消息
type UIMessage struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	Parts       []model.Part    `json:"parts,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

// Text 消息文本，content 为空时拼接文本片段
func (m UIMessage) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == model.PartTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ==================== 对话轮次持久化 ====================

// ResolveChat 解析本轮对话所属的对话
// 未提供 ID 时新建；ID 不存在或属于其他用户时透明地新建对话并返回新 ID。
// 只有 ID 未被占用且格式合法时才沿用客户端提供的 ID。永远不会返回不存在错误。
// 参数:
//   - ctx: 上下文
//   - suppliedID: 客户端提供的对话 ID，可以为空
//   - userID: 当前用户 ID
//
// 返回:
//   - *model.Chat: 属于当前用户的对话
//   - error: 数据库错误
func (s *ChatService) ResolveChat(ctx context.Context, suppliedID, userID string) (*model.Chat, error) {
	newID := util.NewID()
	if suppliedID != "" {
		chat, err := s.chatRepo.GetByID(ctx, suppliedID)
		if err != nil {
			return nil, err
		}
		switch {
		case chat != nil && chat.UserID == userID:
			return chat, nil
		case chat != nil:
			s.logger.Warn("chat owned by another user, creating a new chat", "chat_id", suppliedID, "user_id", userID)
		case util.IsUUID(suppliedID):
			newID = suppliedID
		default:
			s.logger.Debug("malformed chat id, creating a new chat", "chat_id", suppliedID)
		}
	}

	chat := &model.Chat{
		ID:         newID,
		UserID:     userID,
		Title:      title.Placeholder,
		Visibility: model.ChatVisibilityPrivate,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// RecordInboundMessage 记录本轮的用户消息
// 只有历史的最后一条消息是 user 时才写入，否则什么都不做
// 返回:
//   - *model.Message: 写入（或已存在）的消息，无需写入时为 nil
//   - error: 数据库错误
func (s *ChatService) RecordInboundMessage(ctx context.Context, chatID string, history []UIMessage) (*model.Message, error) {
	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	if last.Role != model.MessageRoleUser {
		return nil, nil
	}

	id := strings.TrimSpace(last.ID)
	if id == "" || len(id) > maxMessageIDLen {
		id = util.NewID()
	}
	text := last.Text()
	parts := last.Parts
	if len(parts) == 0 {
		parts = []model.Part{model.TextPart(text)}
	}

	msg := &model.Message{
		ID:      id,
		ChatID:  chatID,
		Role:    model.MessageRoleUser,
		Content: text,
		Parts:   datatypes.JSONSlice[model.Part](parts),
	}
	if len(last.Attachments) > 0 {
		msg.Attachments = datatypes.JSON(last.Attachments)
	}
	created, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		return nil, err
	}
	if created {
		return msg, nil
	}

	// ID 冲突：同一对话内是客户端重发，其他对话则换新 ID 写入
	existing, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ChatID == chatID {
		s.logger.Debug("user message already recorded", "chat_id", chatID, "message_id", id)
		return msg, nil
	}
	s.logger.Warn("message id taken by another chat, assigning a new one", "chat_id", chatID, "message_id", id)
	msg.ID = util.NewID()
	if _, err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// MaybeDeriveTitle 对话标题仍是占位标题时，根据消息文本生成标题
// 返回:
//   - bool: 是否更新了标题
//   - error: 数据库错误
func (s *ChatService) MaybeDeriveTitle(ctx context.Context, chat *model.Chat, text string) (bool, error) {
	if !title.ShouldUpdate(chat.Title) {
		return false, nil
	}
	derived := title.Derive(text)
	if derived == chat.Title || title.ShouldUpdate(derived) {
		return false, nil
	}
	if err := s.chatRepo.UpdateTitle(ctx, chat.ID, derived); err != nil {
		return false, err
	}
	chat.Title = derived

	if s.notifier != nil {
		go s.notifier.NotifyChatTitle(chat.UserID, chat.ID, derived)
	}
	return true, nil
}

// RecordOutboundMessage 记录本轮的 assistant 消息
// 写入失败只记录日志，不影响已经发送给客户端的回复
func (s *ChatService) RecordOutboundMessage(ctx context.Context, chatID string, res *agent.Result) *model.Message {
	msg := &model.Message{
		ID:      util.NewID(),
		ChatID:  chatID,
		Role:    model.MessageRoleAssistant,
		Content: res.Content,
		Parts:   datatypes.JSONSlice[model.Part](res.Parts),
	}
	if msg.Parts == nil {
		msg.Parts = datatypes.JSONSlice[model.Part]{}
	}
	if _, err := s.messageRepo.Create(ctx, msg); err != nil {
		s.logger.Error("failed to persist assistant message", "chat_id", chatID, "error", err)
	}
	return msg
}

// ==================== 对话管理 ====================

// ChatResponse 对话响应
type ChatResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatDetailResponse 对话详情响应
type ChatDetailResponse struct {
	Chat      ChatResponse    `json:"chat"`
	Messages  []model.Message `json:"messages"`
	Streaming bool            `json:"streaming"` // 是否正在生成回复
}

// CreateChatRequest 创建对话请求
type CreateChatRequest struct {
	Title      *string `json:"title" binding:"omitempty,max=255"`
	Visibility *string `json:"visibility" binding:"omitempty,oneof=private public"`
}

// UpdateChatRequest 更新对话请求
type UpdateChatRequest struct {
	Title      *string `json:"title" binding:"omitempty,max=255"`
	Visibility *string `json:"visibility" binding:"omitempty,oneof=private public"`
}

// ListChats 获取用户的对话列表，最新的在前
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]ChatResponse, error) {
	chats, err := s.chatRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := make([]ChatResponse, len(chats))
	for i := range chats {
		result[i] = toChatResponse(&chats[i])
	}
	return result, nil
}

// CreateChat 显式创建对话
func (s *ChatService) CreateChat(ctx context.Context, userID string, req *CreateChatRequest) (*ChatResponse, error) {
	chat := &model.Chat{
		ID:         util.NewID(),
		UserID:     userID,
		Title:      title.Placeholder,
		Visibility: model.ChatVisibilityPrivate,
	}
	if req != nil && req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		chat.Title = strings.TrimSpace(*req.Title)
	}
	if req != nil && req.Visibility != nil {
		chat.Visibility = *req.Visibility
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	resp := toChatResponse(chat)
	return &resp, nil
}

// GetChat 获取对话详情及全部消息
// 不存在或不属于当前用户时返回 ErrChatNotFound
func (s *ChatService) GetChat(ctx context.Context, userID, chatID string) (*ChatDetailResponse, error) {
	chat, err := s.chatRepo.GetByIDWithMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.UserID != userID {
		return nil, ErrChatNotFound
	}

	messages := chat.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	return &ChatDetailResponse{
		Chat:      toChatResponse(chat),
		Messages:  messages,
		Streaming: s.cache != nil && s.cache.IsChatStreaming(ctx, chat.ID),
	}, nil
}

// UpdateChat 修改对话标题或可见性
func (s *ChatService) UpdateChat(ctx context.Context, userID, chatID string, req *UpdateChatRequest) (*ChatResponse, error) {
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			t = title.Placeholder
		}
		fields["title"] = t
		chat.Title = t
	}
	if req.Visibility != nil {
		fields["visibility"] = *req.Visibility
		chat.Visibility = *req.Visibility
	}
	if len(fields) > 0 {
		if err := s.chatRepo.UpdateFields(ctx, chatID, fields); err != nil {
			return nil, err
		}
		if _, ok := fields["title"]; ok && s.notifier != nil {
			go s.notifier.NotifyChatTitle(userID, chatID, chat.Title)
		}
	}
	resp := toChatResponse(chat)
	return &resp, nil
}

// DeleteChat 删除对话及其所有消息
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	if err := s.chatRepo.Delete(ctx, chatID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.ClearChatStreaming(ctx, chatID); err != nil {
			s.logger.Warn("failed to clear streaming marker", "chat_id", chatID, "error", err)
		}
	}
	if s.notifier != nil {
		go s.notifier.NotifyChatDeleted(userID, chatID)
	}
	return nil
}

// ==================== 标题回填 ====================

// BackfillReport 标题回填结果
type BackfillReport struct {
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"` // 没有用户消息或生成的标题仍是占位标题
	Failed  int      `json:"failed"`
	Titles  []string `json:"titles,omitempty"` // dry-run 时记录将要写入的标题
}

// BackfillTitles 为标题仍是通用标题的对话，根据第一条用户消息生成标题
// 参数:
//   - ctx: 上下文
//   - dryRun: 只计算不写入
func (s *ChatService) BackfillTitles(ctx context.Context, dryRun bool) (*BackfillReport, error) {
	chats, err := s.chatRepo.ListByTitles(ctx, title.GenericTitles())
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	for i := range chats {
		chat := &chats[i]
		msg, err := s.messageRepo.GetFirstUserMessage(ctx, chat.ID)
		if err != nil {
			s.logger.Error("backfill: failed to load first message", "chat_id", chat.ID, "error", err)
			report.Failed++
			continue
		}
		if msg == nil {
			report.Skipped++
			continue
		}
		derived := title.Derive(msg.Content)
		if title.ShouldUpdate(derived) {
			report.Skipped++
			continue
		}
		if dryRun {
			report.Titles = append(report.Titles, derived)
			report.Updated++
			continue
		}
		if err := s.chatRepo.UpdateTitle(ctx, chat.ID, derived); err != nil {
			s.logger.Error("backfill: failed to update title", "chat_id", chat.ID, "error", err)
			report.Failed++
			continue
		}
		report.Updated++
	}
	return report, nil
}

func (s *ChatService) ownedChat(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func toChatResponse(chat *model.Chat) ChatResponse {
	return ChatResponse{
		ID:         chat.ID,
		Title:      chat.Title,
		Visibility: chat.Visibility,
		CreatedAt:  chat.CreatedAt,
	}
}
