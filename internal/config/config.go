// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourusername/login-gate/internal/users"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	// DemoSeedPassword はローカル開発用シードの既定パスワードです。release モードでは使用できません。
	DemoSeedPassword = "programacionavanzada"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // HTTPサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ログ設定
	LogLevel string // zerolog のレベル (debug, info, warn, error)

	// セッション設定
	SessionSecret     string // セッションCookie署名用の秘密鍵
	SessionBackend    string // memory または redis
	SessionRedisURL   string // redis バックエンド時の接続URL
	SessionTTLMinutes int    // サーバー側セッションの有効期限（分）

	// データベース設定
	DB DatabaseConfig

	// 初期ユーザー（シード）設定
	Seed users.Seed
}

// DatabaseConfig は利用者テーブルを保持するデータベースの設定です。
type DatabaseConfig struct {
	Driver      string // sqlite または postgres
	Path        string // sqlite のファイルパス
	Host        string
	Port        string
	Name        string
	Maintenance string // CREATE DATABASE 実行時に接続する管理用DB
	User        string
	Password    string
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8080"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		// セッション設定
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionBackend:    getEnv("SESSION_BACKEND", SessionBackendMemory),
		SessionRedisURL:   getEnv("SESSION_REDIS_URL", "redis://127.0.0.1:6379/0"),
		SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 30),

		DB: DatabaseConfig{
			Driver:      getEnv("LOGIN_DB_DRIVER", DriverSQLite),
			Path:        getEnv("LOGIN_DB_PATH", filepath.Join("data", "login.sqlite")),
			Host:        getEnv("LOGIN_DB_HOST", "localhost"),
			Port:        getEnv("LOGIN_DB_PORT", "5432"),
			Name:        getEnv("LOGIN_DB_NAME", "gestion_usuarios"),
			Maintenance: getEnv("LOGIN_DB_MAINTENANCE", "postgres"),
			User:        getEnv("LOGIN_DB_USER", "fcytuader"),
			Password:    getEnv("LOGIN_DB_PASSWORD", ""),
		},

		Seed: users.Seed{
			Username: getEnv("LOGIN_SEED_USER", "fcytuader"),
			// 空文字を明示するとシードを無効にできる
			Password: lookupEnv("LOGIN_SEED_PASSWORD", DemoSeedPassword),
			Role:     users.Role(getEnv("LOGIN_SEED_ROLE", string(users.RoleInstructor))),
			Subject:  getEnv("LOGIN_SEED_SUBJECT", "Programacion Avanzada"),
		},
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("LOGIN_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Name == "" {
			return fmt.Errorf("LOGIN_DB_HOST and LOGIN_DB_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported LOGIN_DB_DRIVER: %q", c.DB.Driver)
	}

	switch c.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.SessionRedisURL == "" {
			return fmt.Errorf("SESSION_REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND: %q", c.SessionBackend)
	}

	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}

	// シードが有効な場合のみロールと科目をチェックする
	if c.Seed.Enabled() {
		if !c.Seed.Role.Valid() {
			return fmt.Errorf("LOGIN_SEED_ROLE is not a valid role: %q", c.Seed.Role)
		}
		if !users.ValidSubject(c.Seed.Subject) {
			return fmt.Errorf("LOGIN_SEED_SUBJECT is not a valid subject: %q", c.Seed.Subject)
		}
	}

	// ローカル開発では秘密鍵は任意（起動時に一時鍵を生成する）
	if c.GinMode == "release" && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in release mode")
	}
	if c.GinMode == "release" && c.Seed.Enabled() && c.Seed.Password == DemoSeedPassword {
		return fmt.Errorf("LOGIN_SEED_PASSWORD must be changed or set empty in release mode")
	}

	return nil
}

// SessionTTL はサーバー側セッションの有効期限を返します。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// SessionTTLSeconds はセッションの有効期限を秒数で返します。
func (c *Config) SessionTTLSeconds() int {
	return c.SessionTTLMinutes * 60
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// lookupEnv は getEnv と異なり、設定済みの空文字をそのまま返します。
func lookupEnv(key string, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
