package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

type serverConfig struct {
	HTTPAddr      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	AccessSecret  string
	RefreshSecret string
	TokenIssuer   string
	AuditPath     string
	Production    bool
}

// loadServerConfig reads configuration from the environment, with a .env
// file as an optional local override.
func loadServerConfig() (serverConfig, error) {
	_ = godotenv.Load()

	cfg := serverConfig{
		HTTPAddr:      envOr("CLINICAUTH_HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("CLINICAUTH_DATABASE_URL"),
		RedisAddr:     envOr("CLINICAUTH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("CLINICAUTH_REDIS_PASSWORD"),
		AccessSecret:  os.Getenv("CLINICAUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("CLINICAUTH_REFRESH_SECRET"),
		TokenIssuer:   envOr("CLINICAUTH_TOKEN_ISSUER", "apsicologia"),
		AuditPath:     os.Getenv("CLINICAUTH_AUDIT_LOG"),
		Production:    os.Getenv("CLINICAUTH_PRODUCTION") == "true",
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("CLINICAUTH_DATABASE_URL is required")
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return cfg, errors.New("CLINICAUTH_ACCESS_SECRET and CLINICAUTH_REFRESH_SECRET are required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
