package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

type heldLock struct {
	token   string
	expires time.Time
}

// MemManager is an in-memory Manager for tests and single-process
// deployments.
type MemManager struct {
	log   *zap.Logger
	mu    sync.Mutex
	locks map[string]heldLock
}

// NewMemManager constructs a MemManager. logger defaults to zap.NewNop()
// when nil.
func NewMemManager(logger *zap.Logger) *MemManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemManager{log: logger, locks: make(map[string]heldLock)}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (m *MemManager) Acquire(_ context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.locks[key]; ok && now.Before(existing.expires) {
		return nil, false, nil
	}
	token := newToken()
	m.locks[key] = heldLock{token: token, expires: now.Add(ttl)}
	return &Lock{Key: key, Token: token}, true, nil
}

func (m *MemManager) Extend(_ context.Context, l *Lock, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[l.Key]
	if !ok || existing.token != l.Token || time.Now().After(existing.expires) {
		m.log.Warn("lock extend failed", zap.String("key", l.Key))
		return ErrNotHeld
	}
	existing.expires = time.Now().Add(ttl)
	m.locks[l.Key] = existing
	return nil
}

func (m *MemManager) Release(_ context.Context, l *Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[l.Key]
	if !ok || existing.token != l.Token {
		// Already released, expired, or re-acquired by someone else:
		// releasing is always a safe no-op.
		return nil
	}
	delete(m.locks, l.Key)
	return nil
}
