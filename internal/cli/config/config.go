// Package config 管理 CLI 客户端配置
// 配置保存在 ~/.cybertrace/config.yaml
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultServerURL 默认服务器地址
const DefaultServerURL = "http://localhost:8080"

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL string `mapstructure:"url"` // HTTP API 地址
}

// AuthConfig 登录凭证
type AuthConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	Email        string `mapstructure:"email"`
}

// Store 配置存储
type Store struct {
	v    *viper.Viper
	cfg  Config
	path string
}

// Load 加载配置目录下的 config.yaml，不存在时创建
// 参数:
//   - dir: 配置目录，为空时使用 ~/.cybertrace
func Load(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home directory")
		}
		dir = filepath.Join(home, ".cybertrace")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create config directory")
	}

	s := &Store{v: viper.New(), path: filepath.Join(dir, "config.yaml")}
	s.v.SetConfigFile(s.path)
	s.v.SetConfigType("yaml")

	// 环境变量优先，例如 CYBERTRACE_SERVER_URL
	s.v.SetEnvPrefix("cybertrace")
	s.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	s.v.AutomaticEnv()

	s.v.SetDefault("server.url", DefaultServerURL)
	s.v.SetDefault("auth.access_token", "")
	s.v.SetDefault("auth.refresh_token", "")
	s.v.SetDefault("auth.email", "")

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.v.WriteConfigAs(s.path); err != nil {
			return nil, errors.Wrap(err, "write default config")
		}
	} else if err := s.v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	if err := s.v.Unmarshal(&s.cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return s, nil
}

// Path 配置文件路径
func (s *Store) Path() string { return s.path }

// ServerURL 获取服务器地址
func (s *Store) ServerURL() string {
	return strings.TrimRight(s.cfg.Server.URL, "/")
}

// SetServerURL 设置服务器地址，下次写入配置时一并保存
func (s *Store) SetServerURL(url string) {
	s.v.Set("server.url", url)
	s.cfg.Server.URL = url
}

// AccessToken 获取访问 Token
func (s *Store) AccessToken() string { return s.cfg.Auth.AccessToken }

// RefreshToken 获取刷新 Token
func (s *Store) RefreshToken() string { return s.cfg.Auth.RefreshToken }

// Email 当前登录的邮箱
func (s *Store) Email() string { return s.cfg.Auth.Email }

// IsLoggedIn 检查是否已登录
func (s *Store) IsLoggedIn() bool { return s.cfg.Auth.AccessToken != "" }

// SaveAuth 保存登录凭证
func (s *Store) SaveAuth(email, accessToken, refreshToken string) error {
	s.v.Set("auth.email", email)
	s.v.Set("auth.access_token", accessToken)
	s.v.Set("auth.refresh_token", refreshToken)
	s.cfg.Auth = AuthConfig{AccessToken: accessToken, RefreshToken: refreshToken, Email: email}
	return s.v.WriteConfig()
}

// SaveAccessToken 刷新后只更新访问 Token
func (s *Store) SaveAccessToken(accessToken string) error {
	s.v.Set("auth.access_token", accessToken)
	s.cfg.Auth.AccessToken = accessToken
	return s.v.WriteConfig()
}

// Clear 清除本地凭证
func (s *Store) Clear() error {
	return s.SaveAuth("", "", "")
}
