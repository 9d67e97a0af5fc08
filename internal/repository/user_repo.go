package repository

import (
	"context"

	"gorm.io/gorm"

	"cybertrace-ops/internal/model"
)

// UserRepository 用户数据访问层
// 对话核心只需要按 ID 确认用户存在；其余方法服务于注册登录
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建 UserRepository 实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建新用户，邮箱重复时返回唯一索引错误
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 根据 ID 获取用户，未找到返回 nil
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return first[model.User](r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByEmail 根据邮箱获取用户，用于登录验证
// 参数:
//   - ctx: 上下文
//   - email: 已规范化（小写、去空格）的邮箱
//
// 返回:
//   - *model.User: 用户对象，未找到返回 nil
//   - error: 数据库错误
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return first[model.User](r.db.WithContext(ctx).Where("email = ?", email))
}

// ExistsByEmail 检查邮箱是否已注册
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Limit(1).Count(&n).Error
	return n > 0, err
}

// UpdateProfile 更新显示名称和头像，nil 字段保持不变
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name, image *string) error {
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if image != nil {
		updates["image"] = *image
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.User{ID: id}).Updates(updates).Error
}

// UpdatePasswordHash 替换密码哈希
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.db.WithContext(ctx).Model(&model.User{ID: id}).Update("password_hash", hash).Error
}
