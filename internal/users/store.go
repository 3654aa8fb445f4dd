package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/yourusername/login-gate/internal/logutil"
	"github.com/yourusername/login-gate/internal/password"
)

var (
	// ErrNotFound は該当する利用者が存在しない場合に返されます。
	ErrNotFound = errors.New("users: user not found")
	// ErrUnavailable はデータベースに接続できない、または初期化できない場合に返されます。
	ErrUnavailable = errors.New("users: store unavailable")
)

// Repository は利用者名からレコードを取得する機能です。
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Record, error)
}

// dialect はデータベースごとのSQL文をまとめたものです。
type dialect struct {
	name string
	// lock は初期化トランザクションの先頭で実行されます（空なら実行しない）。
	lock        string
	createTable string
	insertSeed  string
	selectUser  string
}

// SQLStore は database/sql 上の Repository 実装です。
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	seed    Seed
	hash    func(string) (string, error)
	ready   atomic.Bool
}

func newSQLStore(db *sql.DB, d dialect, seed Seed) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		seed:    seed,
		hash:    password.Generate,
	}
}

// Bootstrap はテーブルを作成し、シードアカウントを投入します。
// 何度呼んでも安全で、既存の行は上書きしません。
// 途中で失敗した場合はトランザクション全体をロールバックします。
func (s *SQLStore) Bootstrap(ctx context.Context) error {
	var seedHash string
	if s.seed.Enabled() {
		h, err := s.hash(s.seed.Password)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		seedHash = h
	}

	err := withTx(ctx, s.db, func(ctx context.Context, tx execer) error {
		if s.dialect.lock != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.lock); err != nil {
				return fmt.Errorf("acquire bootstrap lock: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, s.dialect.createTable); err != nil {
			return fmt.Errorf("create usuarios table: %w", err)
		}
		if seedHash == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, s.dialect.insertSeed,
			s.seed.Username, seedHash, string(s.seed.Role), s.seed.Subject); err != nil {
			return fmt.Errorf("insert seed user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ready.Store(true)
	logger := logutil.GetOrDefault(ctx)
	logger.Debug().
		Str("db.driver", s.dialect.name).
		Bool("seed", seedHash != "").
		Msg("usuarios schema ready")
	return nil
}

// FindByUsername は利用者名に一致するレコードを返します。
// 存在しない場合は ErrNotFound、接続や初期化に失敗した場合は ErrUnavailable を包んだエラーを返します。
func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*Record, error) {
	if !s.ready.Load() {
		// 同時に複数のリクエストが初期化しても IF NOT EXISTS / ON CONFLICT で収束する
		if err := s.Bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	record := &Record{}
	var role string
	err := s.db.QueryRowContext(ctx, s.dialect.selectUser, username).
		Scan(&record.Username, &record.PasswordHash, &role, &record.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	record.Role = Role(role)
	return record, nil
}

// Close はデータベース接続を閉じます。
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func logOpen(ctx context.Context, driver, target string) {
	logger := logutil.GetOrDefault(ctx)
	logger.Info().
		Str("db.driver", driver).
		Str("db.target", target).
		Msg("Opened credential store")
}

var _ zerolog.LogObjectMarshaler = Record{}

// MarshalZerologObject はパスワードハッシュを除いてログに出力します。
func (r Record) MarshalZerologObject(e *zerolog.Event) {
	e.Str("username", r.Username).
		Str("role", string(r.Role)).
		Str("subject", r.Subject)
}
