package config

import (
	"fmt"
	"time"

	commoncfg "kosmo-admin/common/config"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config kosmo-admin（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr            string        `env:"ADDR" envDefault:":8080"`
		MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	} `envPrefix:"HTTP_"`

	Database    commoncfg.DatabaseConfig `envPrefix:"DB_"`
	AutoMigrate bool                     `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	Redis       commoncfg.RedisConfig    `envPrefix:"REDIS_"`

	Log struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"json"`
	} `envPrefix:"LOG_"`

	Session SessionConfig `envPrefix:"SESSION_"`
	Square  SquareConfig  `envPrefix:"SQUARE_"`
	Mail    MailConfig
	MQTT    MQTTConfig `envPrefix:"MQTT_"`

	// PlansFile 套餐定价 YAML；为空时使用内置价格表
	PlansFile string `env:"PLANS_FILE"`
}

// SessionConfig 会话 cookie 与 Redis TTL
type SessionConfig struct {
	Secret       string        `env:"SECRET,required"`
	TTL          time.Duration `env:"TTL" envDefault:"24h"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"kosmo_session"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
}

// SquareConfig Square 支付服务配置
type SquareConfig struct {
	Environment string        `env:"ENVIRONMENT" envDefault:"sandbox"`
	AccessToken string        `env:"ACCESS_TOKEN"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
	// BaseURL 覆盖环境推导出的地址（测试用）
	BaseURL string `env:"BASE_URL"`
}

// ResolvedBaseURL 按环境选择 Square API 地址
func (c SquareConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == "production" {
		return "https://connect.squareup.com"
	}
	return "https://connect.squareupsandbox.com"
}

// MailConfig 邀请邮件 SMTP 配置；Host 为空时不发送邮件
type MailConfig struct {
	Host            string        `env:"SMTP_HOST"`
	Port            int           `env:"SMTP_PORT" envDefault:"587"`
	Username        string        `env:"SMTP_USERNAME"`
	Password        string        `env:"SMTP_PASSWORD"`
	Timeout         time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
	From            string        `env:"MAIL_FROM" envDefault:"FlowKosmo <no-reply@flowkosmo.xyz>"`
	RegistrationURL string        `env:"REGISTRATION_URL" envDefault:"https://app.flowkosmo.xyz/register-business"`
}

// MQTTConfig 审计事件发布（默认关闭）
type MQTTConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Topic   string `env:"AUDIT_TOPIC" envDefault:"kosmo/admin/audit"`

	commoncfg.MQTTConfig
}

// Load 从环境变量（以及可选的 .env 文件）加载配置
func Load() (*Config, error) {
	// 本地开发时读取 .env，文件不存在不视为错误
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	switch c.Square.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("SQUARE_ENVIRONMENT must be sandbox or production, got %q", c.Square.Environment)
	}
	return nil
}
