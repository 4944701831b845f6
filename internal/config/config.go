package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env               string        `json:"env"`                 // 运行环境: local / prod
	LogLevel          string        `json:"log_level"`           // 日志级别: debug / info / warn / error
	HTTPAddr          string        `json:"http_addr"`           // API 服务监听地址
	RateLimit         float64       `json:"rate_limit"`          // 单客户端限流速率（token/s）
	RateBurst         float64       `json:"rate_burst"`          // 限流桶容量
	HashWorkers       int           `json:"hash_workers"`        // 密码哈希 worker 数
	HashQueueCapacity int           `json:"hash_queue_capacity"` // 哈希任务队列容量
	StatsCacheTTL     time.Duration `json:"stats_cache_ttl"`     // 聚合统计缓存时长（如 "5m"）
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 缓存配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件发送配置。
type EmailConfig struct {
	SMTPHost    string        `json:"smtp_host"`
	SMTPPort    int           `json:"smtp_port"`
	SMTPUser    string        `json:"smtp_user"`
	SMTPPass    string        `json:"smtp_pass"`
	FromEmail   string        `json:"from_email"`
	SendTimeout time.Duration `json:"send_timeout"` // 单封邮件发送超时（如 "10s"）
}

// SecurityConfig 安全相关配置。
//
// 这里集中了所有会影响凭证子系统行为的开关，由构造时显式注入，
// 业务代码不再各自读环境变量。
type SecurityConfig struct {
	JWTSecret     string        `json:"jwt_secret"`      // JWT 签名密钥
	TokenTTL      time.Duration `json:"token_ttl"`       // 会话令牌有效期（如 "24h"）
	CookieTTLDays int           `json:"cookie_ttl_days"` // jwt cookie 有效天数
	BcryptCost    int           `json:"bcrypt_cost"`     // bcrypt 代价因子
	ResetTokenTTL time.Duration `json:"reset_token_ttl"` // 密码重置令牌有效期（如 "10m"）
	AdminEmail    string        `json:"admin_email"`     // 初始管理员邮箱（为空表示不播种）
	AdminPassword string        `json:"admin_password"`  // 初始管理员密码
}

// IsProduction 返回是否运行在生产环境（决定 cookie 的 secure 位等）。
func (c *Config) IsProduction() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

// Load 从 JSON 文件加载配置。
//
// 配置文件不存在时使用默认值；环境变量始终可以覆盖文件内容。
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:               "local",
			LogLevel:          "info",
			HTTPAddr:          ":8080",
			RateLimit:         10,
			RateBurst:         20,
			HashWorkers:       4,
			HashQueueCapacity: 64,
			StatsCacheTTL:     5 * time.Minute,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/tourhive?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:    "smtp.gmail.com",
			SMTPPort:    587,
			SMTPUser:    "",
			SMTPPass:    "",
			FromEmail:   "",
			SendTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:     "dev_secret_change_me",
			TokenTTL:      24 * time.Hour,
			CookieTTLDays: 90,
			BcryptCost:    12,
			ResetTokenTTL: 10 * time.Minute,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.HashWorkers == 0 {
		cfg.App.HashWorkers = defaults.App.HashWorkers
	}
	if cfg.App.HashQueueCapacity == 0 {
		cfg.App.HashQueueCapacity = defaults.App.HashQueueCapacity
	}
	if cfg.App.StatsCacheTTL == 0 {
		cfg.App.StatsCacheTTL = defaults.App.StatsCacheTTL
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Email.SendTimeout == 0 {
		cfg.Email.SendTimeout = defaults.Email.SendTimeout
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.TokenTTL == 0 {
		cfg.Security.TokenTTL = defaults.Security.TokenTTL
	}
	if cfg.Security.CookieTTLDays == 0 {
		cfg.Security.CookieTTLDays = defaults.Security.CookieTTLDays
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaults.Security.BcryptCost
	}
	if cfg.Security.ResetTokenTTL == 0 {
		cfg.Security.ResetTokenTTL = defaults.Security.ResetTokenTTL
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_dsn", "DB_DSN")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("admin_password", "ADMIN_PASSWORD")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}
	if v := os.Getenv("APP_HASH_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.HashWorkers = i
		}
	}
	if v := os.Getenv("APP_STATS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.StatsCacheTTL = d
		}
	}

	if v := viper.GetString("db_dsn"); v != "" {
		cfg.MySQL.DSN = v
	} else if v := viper.GetString("db_password"); v != "" {
		if parsed, err := mysql.ParseDSN(cfg.MySQL.DSN); err == nil {
			parsed.Passwd = v
			cfg.MySQL.DSN = parsed.FormatDSN()
		}
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("JWT_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.TokenTTL = d
		}
	}
	if v := os.Getenv("JWT_COOKIE_TTL_DAYS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.CookieTTLDays = i
		}
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.BcryptCost = i
		}
	}
	if v := os.Getenv("RESET_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.ResetTokenTTL = d
		}
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := viper.GetString("admin_password"); v != "" {
		cfg.Security.AdminPassword = v
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		StatsCacheTTL string `json:"stats_cache_ttl"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.StatsCacheTTL != "" {
		duration, err := time.ParseDuration(aux.StatsCacheTTL)
		if err != nil {
			return fmt.Errorf("invalid stats_cache_ttl format: %w", err)
		}
		a.StatsCacheTTL = duration
	}

	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (s *SecurityConfig) UnmarshalJSON(data []byte) error {
	type Alias SecurityConfig
	aux := &struct {
		TokenTTL      string `json:"token_ttl"`
		ResetTokenTTL string `json:"reset_token_ttl"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TokenTTL != "" {
		duration, err := time.ParseDuration(aux.TokenTTL)
		if err != nil {
			return fmt.Errorf("invalid token_ttl format: %w", err)
		}
		s.TokenTTL = duration
	}
	if aux.ResetTokenTTL != "" {
		duration, err := time.ParseDuration(aux.ResetTokenTTL)
		if err != nil {
			return fmt.Errorf("invalid reset_token_ttl format: %w", err)
		}
		s.ResetTokenTTL = duration
	}

	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (e *EmailConfig) UnmarshalJSON(data []byte) error {
	type Alias EmailConfig
	aux := &struct {
		SendTimeout string `json:"send_timeout"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.SendTimeout != "" {
		duration, err := time.ParseDuration(aux.SendTimeout)
		if err != nil {
			return fmt.Errorf("invalid send_timeout format: %w", err)
		}
		e.SendTimeout = duration
	}

	return nil
}
