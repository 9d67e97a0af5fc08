// Package service 提供业务逻辑层的实现
// 服务层协调 Repository、Cache 和对话核心
package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"cybertrace-ops/internal/cache"
	"cybertrace-ops/internal/model"
	"cybertrace-ops/internal/repository"
	"cybertrace-ops/pkg/jwt"
	"cybertrace-ops/pkg/util"
)

// 认证相关错误
var (
	ErrEmailExists   = errors.New("email already registered")
	ErrUserNotFound  = errors.New("user not found")
	ErrPasswordWrong = errors.New("invalid email or password")
	ErrUserDisabled  = errors.New("user disabled")
)

// AuthService 认证服务
// 对话核心只依赖认证结果（用户 ID），注册登录在这里完成
type AuthService struct {
	userRepo   *repository.UserRepository
	cache      *cache.RedisCache
	jwtService *jwt.JWTService
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(userRepo *repository.UserRepository, cache *cache.RedisCache, jwtService *jwt.JWTService) *AuthService {
	return &AuthService{userRepo: userRepo, cache: cache, jwtService: jwtService}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"max=100"` // 为空时取邮箱 @ 前的部分
	Password string `json:"password" binding:"required,min=6"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"` // 秒
	User         *model.User `json:"user"`
}

// RefreshTokenResponse 刷新 Token 响应
type RefreshTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Register 用户注册
// 返回:
//   - *RegisterResponse: 新用户的 ID 和规范化后的邮箱
//   - error: 邮箱已存在返回 ErrEmailExists
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	email := normalizeEmail(req.Email)
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user := &model.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Status:       model.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return &RegisterResponse{UserID: user.ID, Email: user.Email}, nil
}

// Login 用户登录
// 用户不存在与密码错误返回同一个错误，避免泄露邮箱是否注册
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !util.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrPasswordWrong
	}
	if !user.Active() {
		return nil, ErrUserDisabled
	}

	access, err := s.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.accessExpiresIn(),
		User:         user,
	}, nil
}

// Logout 把 Token 哈希加入黑名单，TTL 为 Token 的剩余有效期
func (s *AuthService) Logout(ctx context.Context, tokenHash string, expireAt time.Time) error {
	return s.cache.BlacklistToken(ctx, tokenHash, expireAt)
}

// RefreshToken 用 Refresh Token 换取新的 Access Token
// 用户被删除或禁用后刷新失败
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*RefreshTokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	switch {
	case err != nil:
		return nil, err
	case user == nil:
		return nil, ErrUserNotFound
	case !user.Active():
		return nil, ErrUserDisabled
	}

	access, err := s.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &RefreshTokenResponse{AccessToken: access, ExpiresIn: s.accessExpiresIn()}, nil
}

func (s *AuthService) accessExpiresIn() int64 {
	return int64(s.jwtService.GetAccessExpire().Seconds())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
