package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourusername/login-gate/internal/logutil"
)

const (
	codeInvalidCatalogName = "3D000" // 接続先DBが存在しない
	codeDuplicateDatabase  = "42P04"

	defaultPostgresPort = "5432"
	// bootstrapLockKey は初期化トランザクションを直列化するアドバイザリロックのキーです。
	bootstrapLockKey = 72_001
)

var postgresDialect = dialect{
	name: "postgres",
	lock: fmt.Sprintf("SELECT pg_advisory_xact_lock(%d)", bootstrapLockKey),
	createTable: `CREATE TABLE IF NOT EXISTS usuarios (
		id SERIAL PRIMARY KEY,
		username VARCHAR(100) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role VARCHAR(50) NOT NULL,
		subject VARCHAR(100) NOT NULL
	)`,
	insertSeed: `INSERT INTO usuarios (username, password_hash, role, subject)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING`,
	selectUser: `SELECT username, password_hash, role, subject FROM usuarios WHERE username = $1 LIMIT 1`,
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// PostgresConfig はクライアント/サーバー型DBへの接続設定です。
type PostgresConfig struct {
	Host        string
	Port        string
	Name        string
	Maintenance string
	User        string
	Password    string
}

// DSN は dbname に接続するための接続文字列を返します。
func (c PostgresConfig) DSN(dbname string) string {
	port := c.Port
	if !digitsOnly.MatchString(port) {
		port = defaultPostgresPort
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, port),
		Path:   "/" + dbname,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// OpenPostgres は PostgreSQL 上の利用者ストアを開きます。
// 接続先データベースが存在しない場合は管理用DBに接続して作成します。
func OpenPostgres(ctx context.Context, cfg PostgresConfig, seed Seed) (*SQLStore, error) {
	if err := validateIdentifier(cfg.Name); err != nil {
		return nil, err
	}

	db, err := openPing(ctx, cfg.DSN(cfg.Name))
	if err != nil {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != codeInvalidCatalogName {
			return nil, err
		}
		if err := createDatabase(ctx, cfg); err != nil {
			return nil, err
		}
		db, err = openPing(ctx, cfg.DSN(cfg.Name))
		if err != nil {
			return nil, err
		}
	}

	logOpen(ctx, postgresDialect.name, net.JoinHostPort(cfg.Host, cfg.Port)+"/"+cfg.Name)
	return newSQLStore(db, postgresDialect, seed), nil
}

func openPing(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func createDatabase(ctx context.Context, cfg PostgresConfig) error {
	if err := validateIdentifier(cfg.Maintenance); err != nil {
		return err
	}

	maintenance, err := openPing(ctx, cfg.DSN(cfg.Maintenance))
	if err != nil {
		return fmt.Errorf("unable to create database automatically: %w", err)
	}
	defer maintenance.Close()

	_, err = maintenance.ExecContext(ctx, "CREATE DATABASE "+pgx.Identifier{cfg.Name}.Sanitize())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateDatabase {
			return nil
		}
		return fmt.Errorf("unable to create database automatically: %w", err)
	}

	logger := logutil.GetOrDefault(ctx)
	logger.Info().Str("db.name", cfg.Name).Msg("Created database")
	return nil
}

func validateIdentifier(identifier string) error {
	if identifier == "" || strings.ContainsRune(identifier, 0) {
		return fmt.Errorf("invalid database name: %q", identifier)
	}
	return nil
}
