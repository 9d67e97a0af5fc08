package repository

import (
	"context"

	"gorm.io/gorm"

	"cybertrace-ops/internal/model"
)

// ChatRepository 对话数据访问层
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建 ChatRepository 实例
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create 创建新对话
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

// GetByID 根据 ID 获取对话
// 参数:
//   - ctx: 上下文
//   - id: 对话ID
//
// 返回:
//   - *model.Chat: 对话对象，未找到返回 nil
//   - error: 数据库错误
func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	return first[model.Chat](r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByIDWithMessages 获取对话及其所有消息
// 消息按创建时间正序排列，可以完整还原对话过程
func (r *ChatRepository) GetByIDWithMessages(ctx context.Context, id string) (*model.Chat, error) {
	return first[model.Chat](r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id))
}

// ListByUserID 获取用户的所有对话，最新的在前
func (r *ChatRepository) ListByUserID(ctx context.Context, userID string) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&chats).Error
	return chats, err
}

// ListByTitles 获取标题属于给定集合的对话
// 用于标题回填，titles 为空时返回空列表
func (r *ChatRepository) ListByTitles(ctx context.Context, titles []string) ([]model.Chat, error) {
	var chats []model.Chat
	if len(titles) == 0 {
		return chats, nil
	}
	err := r.db.WithContext(ctx).
		Where("title IN ? OR TRIM(title) = ''", titles).
		Order("created_at ASC").
		Find(&chats).Error
	return chats, err
}

// UpdateFields 更新对话的指定字段
func (r *ChatRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Chat{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateTitle 更新对话标题
func (r *ChatRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"title": title})
}

// Delete 删除对话及其所有消息
// 不依赖数据库外键（sqlite 默认不启用），在事务中显式级联
func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Chat{}).Error
	})
}
