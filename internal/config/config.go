package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string
	AllowedOrigin      string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AuthSecret         string
	AccessTokenTTLMins int
	PinUnlockTTLMins   int
	AppEnv             string
	LogLevel           string
}

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("PIN_UNLOCK_TTL_MINUTES", 10)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := Config{
		Port:               v.GetString("PORT"),
		AllowedOrigin:      v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		AuthSecret:         strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMins: v.GetInt("ACCESS_TOKEN_TTL_MINUTES"),
		PinUnlockTTLMins:   v.GetInt("PIN_UNLOCK_TTL_MINUTES"),
		AppEnv:             v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	if cfg.AccessTokenTTLMins < 1 {
		cfg.AccessTokenTTLMins = 480
	}
	if cfg.PinUnlockTTLMins < 1 {
		cfg.PinUnlockTTLMins = 10
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
