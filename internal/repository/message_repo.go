package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cybertrace-ops/internal/model"
)

// MessageRepository 消息数据访问层
// 消息只写入不更新，没有 Update 方法
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建新消息
// 相同 ID 的消息已存在时不做任何事（客户端重发同一条消息）
// 参数:
//   - ctx: 上下文
//   - message: 消息对象，ID 由调用方生成或由客户端提供
//
// 返回:
//   - bool: 是否真正写入
//   - error: 数据库错误
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(message)
	return res.RowsAffected > 0, res.Error
}

// GetByID 根据 ID 获取消息，不存在返回 nil
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	return first[model.Message](r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByChatID 获取对话的所有消息
// 按创建时间正序排列（最早的在前）
func (r *MessageRepository) GetByChatID(ctx context.Context, chatID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC"). // 按时间正序，方便展示对话
		Find(&messages).Error
	return messages, err
}

// GetFirstUserMessage 获取对话的第一条用户消息
// 用于标题回填，没有则返回 nil
func (r *MessageRepository) GetFirstUserMessage(ctx context.Context, chatID string) (*model.Message, error) {
	return first[model.Message](r.db.WithContext(ctx).
		Where("chat_id = ? AND role = ?", chatID, model.MessageRoleUser).
		Order("created_at ASC"))
}

