// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖，启动时可选加载 .env 文件
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
// 包含所有子配置模块
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`     // 服务器配置
	Database   DatabaseConfig   `mapstructure:"database"`   // 数据库配置
	Redis      RedisConfig      `mapstructure:"redis"`      // Redis 配置
	JWT        JWTConfig        `mapstructure:"jwt"`        // JWT 配置
	Log        LogConfig        `mapstructure:"log"`        // 日志配置
	AI         AIConfig         `mapstructure:"ai"`         // 模型配置
	ToolServer ToolServerConfig `mapstructure:"toolserver"` // 外部工具服务器配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port            int           `mapstructure:"port"`             // 监听端口，默认 8080
	Mode            string        `mapstructure:"mode"`             // 运行模式: debug / release
	CORS            []string      `mapstructure:"cors"`             // CORS 允许的域名
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 优雅关闭等待时间
}

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig 数据库连接配置
// driver 决定使用哪些字段：mysql/postgres 使用 host 等网络参数，sqlite 使用 path
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`         // mysql / postgres / sqlite
	Host         string `mapstructure:"host"`           // 数据库主机地址
	Port         int    `mapstructure:"port"`           // 数据库端口
	Username     string `mapstructure:"username"`       // 数据库用户名
	Password     string `mapstructure:"password"`       // 数据库密码
	Database     string `mapstructure:"database"`       // 数据库名称
	Charset      string `mapstructure:"charset"`        // 字符集（mysql）
	SSLMode      string `mapstructure:"sslmode"`        // SSL 模式（postgres）
	Path         string `mapstructure:"path"`           // 数据库文件路径（sqlite）
	MaxIdleConns int    `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int    `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`         // JWT 签名密钥，至少32字符
	AccessExpire  time.Duration `mapstructure:"access_expire"`  // Access Token 过期时间
	RefreshExpire time.Duration `mapstructure:"refresh_expire"` // Refresh Token 过期时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug/info/warn/error
	Format string `mapstructure:"format"` // 日志格式: json/text
}

// 支持的模型提供方
const (
	ProviderOpenAI = "openai" // 任意 OpenAI 兼容接口，默认指向 OpenRouter
	ProviderGemini = "gemini"
)

// AIConfig 模型调用配置
type AIConfig struct {
	Provider     string        `mapstructure:"provider"`      // openai / gemini
	APIKey       string        `mapstructure:"api_key"`       // API Key
	BaseURL      string        `mapstructure:"base_url"`      // OpenAI 兼容接口地址
	Model        string        `mapstructure:"model"`         // 模型名称
	Temperature  float64       `mapstructure:"temperature"`   // 采样温度
	MaxSteps     int           `mapstructure:"max_steps"`     // 单轮对话最多的模型步数（工具调用轮次）
	MaxDuration  time.Duration `mapstructure:"max_duration"`  // 单轮对话最长耗时
	SystemPrompt string        `mapstructure:"system_prompt"` // 覆盖内置系统提示词，留空使用默认
}

// 外部工具服务器的传输方式
const (
	TransportStdio = "stdio" // 以子进程方式启动
	TransportSSE   = "sse"   // 通过网络连接（SSE）
	TransportHTTP  = "http"  // 通过网络连接（Streamable HTTP）
)

// ToolServerConfig 外部 MCP 工具服务器配置
// command 与 url 都为空时视为未配置，对话只使用本地工具
type ToolServerConfig struct {
	Transport      string            `mapstructure:"transport"`       // stdio / sse / http，留空时按 command/url 自动判断
	Command        string            `mapstructure:"command"`         // 子进程命令
	Args           []string          `mapstructure:"args"`            // 子进程参数
	Env            []string          `mapstructure:"env"`             // 子进程额外环境变量 (KEY=VALUE)
	URL            string            `mapstructure:"url"`             // 网络地址
	Headers        map[string]string `mapstructure:"headers"`         // 网络请求头
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"` // 连接（含握手）超时
	CallTimeout    time.Duration     `mapstructure:"call_timeout"`    // 单次工具调用超时
	Retries        int               `mapstructure:"retries"`         // 连接失败后的重试次数
}

// Configured 是否配置了外部工具服务器
func (c ToolServerConfig) Configured() bool {
	return c.Command != "" || c.URL != ""
}

// Load 从指定路径加载配置文件
// 支持环境变量覆盖配置项
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 返回:
//   - *Config: 配置对象
//   - error: 如果加载失败则返回错误
func Load(configPath string) (*Config, error) {
	// 加载 .env（不存在时忽略），已存在的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// 创建新的 viper 实例
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 启用环境变量
	v.AutomaticEnv()
	// 将环境变量中的 _ 映射到配置的 .
	// 例如: DATABASE_HOST -> database.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 绑定环境变量
	bindEnvVariables(v)

	// 设置默认值（当配置文件中未指定时使用）
	setDefaults(v)

	// 读取配置文件（如果不存在则使用默认值和环境变量）
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在，继续使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 将配置解析到结构体
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	// 服务器配置
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// 数据库配置
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.username", "DATABASE_USERNAME")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.database", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// Redis 配置
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT 配置
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// 模型配置，OpenRouter 与 Gemini 的 Key 都映射到 ai.api_key
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.api_key", "AI_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.model", "AI_MODEL")

	// 工具服务器配置
	v.BindEnv("toolserver.transport", "TOOLSERVER_TRANSPORT")
	v.BindEnv("toolserver.command", "TOOLSERVER_COMMAND")
	v.BindEnv("toolserver.url", "TOOLSERVER_URL")
}

// setDefaults 设置配置项的默认值
// 当配置文件中没有指定某个值时，将使用这里设置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "cybertrace.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_lifetime", 3600)

	// Redis 默认配置
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	// JWT 默认配置
	v.SetDefault("jwt.access_expire", "24h")
	v.SetDefault("jwt.refresh_expire", "168h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 模型默认配置
	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.model", "anthropic/claude-3-7-sonnet")
	v.SetDefault("ai.temperature", 0)
	v.SetDefault("ai.max_steps", 5)
	v.SetDefault("ai.max_duration", "30s")

	// 工具服务器默认配置
	v.SetDefault("toolserver.connect_timeout", "10s")
	v.SetDefault("toolserver.call_timeout", "20s")
	v.SetDefault("toolserver.retries", 2)
}
