// Package jwt 签发和校验用户 Token
// Access Token 用于 HTTP API 与 WebSocket，Refresh Token 只能换取新的 Access Token
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const issuer = "cybertrace-ops"

// Token 类型，写入 sub
const (
	SubjectAccess  = "access"
	SubjectRefresh = "refresh"
)

// UserClaims Token 声明
type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTService 使用 HS256 签名的 Token 服务
type JWTService struct {
	secret        []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
	parser        *jwt.Parser
}

// NewJWTService 创建 JWTService 实例
// 参数:
//   - secret: 签名密钥，至少 32 个字符（由配置校验保证）
//   - accessExpire: Access Token 有效期
//   - refreshExpire: Refresh Token 有效期
func NewJWTService(secret string, accessExpire, refreshExpire time.Duration) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		accessExpire:  accessExpire,
		refreshExpire: refreshExpire,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// GenerateAccessToken 签发 Access Token
func (s *JWTService) GenerateAccessToken(userID, email string) (string, error) {
	return s.sign(userID, email, SubjectAccess, s.accessExpire)
}

// GenerateRefreshToken 签发 Refresh Token
func (s *JWTService) GenerateRefreshToken(userID, email string) (string, error) {
	return s.sign(userID, email, SubjectRefresh, s.refreshExpire)
}

func (s *JWTService) sign(userID, email, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(s.secret)
}

// ValidateToken 校验签名、签发方和有效期，不区分 Token 类型
// 返回:
//   - *UserClaims: 声明
//   - error: ErrExpiredToken 或 ErrInvalidToken
func (s *JWTService) ValidateToken(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil, claims.UserID == "":
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken 只接受 Access Token
func (s *JWTService) ValidateAccessToken(tokenString string) (*UserClaims, error) {
	return s.validate(tokenString, SubjectAccess)
}

// ValidateRefreshToken 只接受 Refresh Token
func (s *JWTService) ValidateRefreshToken(tokenString string) (*UserClaims, error) {
	return s.validate(tokenString, SubjectRefresh)
}

func (s *JWTService) validate(tokenString, subject string) (*UserClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetAccessExpire Access Token 有效期
func (s *JWTService) GetAccessExpire() time.Duration {
	return s.accessExpire
}
