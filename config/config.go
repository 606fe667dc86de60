// Package config loads server settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongodb"
	StoreMemory   = "memory"
)

type Postgres struct {
	DSN            string
	Host           string
	User           string
	Password       string
	Name           string
	Port           string
	SSLMode        string
	ConnectRetries int
	MaxOpenConns   int
}

type Mongo struct {
	URI      string
	Database string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	Env         string
	Port        string
	Store       string
	JWTSecret   string
	TokenTTL    time.Duration
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
	// FirebaseProjectID enables login with Firebase-issued Google ID tokens.
	FirebaseProjectID string

	Postgres Postgres
	Mongo    Mongo
	Redis    Redis
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("TOKEN_TTL", "720h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "community_portal")
	v.SetDefault("REDIS_DB", 0)
}

// Load reads configuration. Values already present in the environment win
// over the .env file; path, when set, names a config file whose keys match
// the environment variable names.
func Load(path string) (*Config, error) {
	// A missing .env is fine; godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	ttl, err := time.ParseDuration(v.GetString("TOKEN_TTL"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}

	cfg := &Config{
		Env:               strings.ToLower(v.GetString("ENV")),
		Port:              v.GetString("PORT"),
		Store:             strings.ToLower(v.GetString("STORE")),
		JWTSecret:         v.GetString("JWT_SECRET"),
		TokenTTL:          ttl,
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		FirebaseProjectID: v.GetString("FIREBASE_PROJECT_ID"),
		Postgres: Postgres{
			DSN:            v.GetString("DB_DSN"),
			Host:           v.GetString("DB_HOST"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASS"),
			Name:           v.GetString("DB_NAME"),
			Port:           v.GetString("DB_PORT"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			ConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
			MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Mongo: Mongo{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DB"),
		},
		Redis: Redis{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASS"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}
	return cfg, nil
}

// Validate checks the settings needed by the selected store.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is missing")
	}
	switch c.Store {
	case StorePostgres:
		if c.Postgres.DSN == "" && (c.Postgres.User == "" || c.Postgres.Name == "") {
			return errors.New("DB_USER and DB_NAME (or DB_DSN) are required for the postgres store")
		}
		if c.Postgres.ConnectRetries < 1 {
			c.Postgres.ConnectRetries = 1
		}
	case StoreMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("MONGO_URI and MONGO_DB are required for the mongodb store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
