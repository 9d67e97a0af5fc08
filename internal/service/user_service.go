package service

import (
	"context"
	"strings"

	"cybertrace-ops/internal/model"
	"cybertrace-ops/internal/repository"
	"cybertrace-ops/pkg/util"
)

// UserService 当前用户资料
type UserService struct {
	userRepo *repository.UserRepository
}

// NewUserService 创建 UserService 实例
func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// UpdateProfileRequest 更新用户资料请求，未提供的字段保持不变
type UpdateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=100"`
	Image *string `json:"image" binding:"omitempty,max=500"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// GetProfile 获取用户资料
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.load(ctx, userID)
}

// UpdateProfile 更新用户资料并返回更新后的用户
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*model.User, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	var name *string
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		name = &trimmed
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, name, req.Image); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

// ChangePassword 校验旧密码后替换为新密码
// 返回:
//   - error: 旧密码错误返回 ErrPasswordWrong
func (s *UserService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !util.CheckPassword(req.OldPassword, user.PasswordHash) {
		return ErrPasswordWrong
	}
	hash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePasswordHash(ctx, userID, hash)
}

func (s *UserService) load(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
