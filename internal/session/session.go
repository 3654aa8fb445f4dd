// Package session はサーバー側に保存するリクエスト単位のセッション状態を提供します。
//
// クライアントが持つのは不透明なセッションIDだけで、値はすべて Store に保存されます。
// 認証成功時には Rotate でIDを付け替え、旧IDをサーバー側で無効化します。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"time"
)

// ErrNotFound は指定IDのセッションが存在しない（失効済みを含む）場合に返されます。
var ErrNotFound = errors.New("session: not found")

// Store はセッションデータの保存先です。
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	// Rotate は values を newID に保存し、oldID を削除します。
	Rotate(ctx context.Context, oldID, newID string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session は1リクエストの間だけ使うセッションの作業コピーです。
type Session struct {
	id     string
	values map[string]string
	fresh  bool
	store  Store
	ttl    time.Duration
}

// ID は現在のセッションIDを返します。
func (s *Session) ID() string {
	return s.id
}

// IsNew は今回のリクエストで作成されたセッションかどうかを返します。
func (s *Session) IsNew() bool {
	return s.fresh
}

// Get は key の値を返します。存在しない場合は ok=false です。
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set は key に value を設定します。
func (s *Session) Set(key, value string) {
	s.values[key] = value
}

// Clear は key を削除します。存在しなくても何もしません。
func (s *Session) Clear(key string) {
	delete(s.values, key)
}

// Take は key の値を返して削除します（一度だけ読む値に使う）。
func (s *Session) Take(key string) (string, bool) {
	v, ok := s.values[key]
	if ok {
		delete(s.values, key)
	}
	return v, ok
}

// Save は現在の値をストアへ保存します。
func (s *Session) Save(ctx context.Context) error {
	if err := s.store.Save(ctx, s.id, s.values, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.fresh = false
	return nil
}

// Rotate は同じデータのまま新しいIDを発行し、旧IDをサーバー側で無効化します。
func (s *Session) Rotate(ctx context.Context) error {
	next, err := newID()
	if err != nil {
		return err
	}
	if s.fresh {
		// 未保存のセッションには無効化すべき旧IDがない
		s.id = next
		return s.Save(ctx)
	}
	if err := s.store.Rotate(ctx, s.id, next, s.values, s.ttl); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	s.id = next
	return nil
}

// Destroy はサーバー側のデータを削除し、新しいIDの空セッションに置き換えます。
func (s *Session) Destroy(ctx context.Context) error {
	if !s.fresh {
		if err := s.store.Delete(ctx, s.id); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
	}
	next, err := newID()
	if err != nil {
		return err
	}
	s.id = next
	s.values = make(map[string]string)
	s.fresh = true
	return nil
}

// Manager はストアからセッションを開始します。
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager は Manager を作成します。
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Start は id のセッションを読み込みます。id が空、または未知の場合は
// クライアント指定のIDを採用せず、新しいIDで空のセッションを作成します。
func (m *Manager) Start(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		values, err := m.store.Load(ctx, id)
		switch {
		case err == nil:
			if values == nil {
				values = make(map[string]string)
			}
			return &Session{id: id, values: maps.Clone(values), store: m.store, ttl: m.ttl}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	fresh, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:     fresh,
		values: make(map[string]string),
		fresh:  true,
		store:  m.store,
		ttl:    m.ttl,
	}, nil
}

func newID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
