package config

import (
	"fmt"
	"net/url"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Database string `env:"NAME" envDefault:"kosmo"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int    `env:"MAX_CONNS" envDefault:"20"`
	MaxIdle  int    `env:"MAX_IDLE" envDefault:"5"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string `env:"BROKER" envDefault:"tcp://localhost:1883"`
	ClientID string `env:"CLIENT_ID" envDefault:"kosmo-admin"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	QoS      byte   `env:"QOS" envDefault:"1"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, quoteDSN(c.Password), c.Database, c.SSLMode)
}

// URL returns the same connection target in postgres:// form, used by tooling that prints it.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(c.User),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func quoteDSN(v string) string {
	if v == "" {
		return "''"
	}
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			out := []rune{'\''}
			for _, c := range v {
				if c == '\'' || c == '\\' {
					out = append(out, '\\')
				}
				out = append(out, c)
			}
			return string(append(out, '\''))
		}
	}
	return v
}
