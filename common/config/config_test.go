package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "kosmo", Password: "secret", Database: "kosmo", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=kosmo password=secret dbname=kosmo sslmode=disable", cfg.GetDSN())
}

func TestDatabaseConfig_GetDSN_QuotesPassword(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "kosmo", Password: "it's a pass", Database: "kosmo", SSLMode: "disable"}
	assert.Contains(t, cfg.GetDSN(), `password='it\'s a pass'`)

	cfg.Password = ""
	assert.Contains(t, cfg.GetDSN(), "password=''")
}

func TestDatabaseConfig_URL(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "kosmo", Database: "kosmo", SSLMode: "require"}
	assert.Equal(t, "postgres://kosmo@db:5433/kosmo?sslmode=require", cfg.URL())
}
