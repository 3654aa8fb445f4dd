package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// 期限切れエントリの掃除間隔
const sweepInterval = time.Minute

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore はプロセス内のマップにセッションを保存します。テストと単一プロセス運用向けです。
type MemoryStore struct {
	lock    sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	nextSweep time.Time
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (map[string]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(s.now()) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	return maps.Clone(entry.values), nil
}

func (s *MemoryStore) Save(_ context.Context, id string, values map[string]string, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.sweep()
	s.entries[id] = s.entry(values, ttl)
	return nil
}

func (s *MemoryStore) Rotate(_ context.Context, oldID, newID string, values map[string]string, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.sweep()
	delete(s.entries, oldID)
	s.entries[newID] = s.entry(values, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.entries, id)
	return nil
}

// Len は保存中のセッション数を返します。
func (s *MemoryStore) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) entry(values map[string]string, ttl time.Duration) memoryEntry {
	e := memoryEntry{values: maps.Clone(values)}
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

// sweep は一度も読まれないまま期限切れになったエントリを削除します。
// 書き込みのたびに走査しないよう sweepInterval に一度だけ実行します。呼び出し側でロックを保持すること。
func (s *MemoryStore) sweep() {
	now := s.now()
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(sweepInterval)
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
		}
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
