package core

import (
	"context"
	"sync"
)

// MemoryTokenManager keeps tokens in a process-local map keyed by token id.
type MemoryTokenManager struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

var _ TokenManager = (*MemoryTokenManager)(nil)

func NewMemoryTokenManager() *MemoryTokenManager {
	return &MemoryTokenManager{tokens: make(map[string]Token)}
}

func (m *MemoryTokenManager) Add(ctx context.Context, t Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.tokens[t.ID] = t
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenManager) Lookup(ctx context.Context, id string) (Token, bool, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, false, err
	}
	m.mu.RLock()
	t, ok := m.tokens[id]
	m.mu.RUnlock()
	if !ok {
		return Token{}, false, nil
	}
	if t.ExpiredAt(nowFunc()) {
		m.removeIfSame(t)
		return Token{}, false, nil
	}
	return t, true, nil
}

// removeIfSame deletes an expired entry unless it was replaced in the meantime.
func (m *MemoryTokenManager) removeIfSame(t Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.tokens[t.ID]; ok && cur.IssuedAt.Equal(t.IssuedAt) && cur.Username == t.Username {
		delete(m.tokens, t.ID)
	}
}

func (m *MemoryTokenManager) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.tokens, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenManager) Tokens(ctx context.Context) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	return out, nil
}

// Len returns the number of stored tokens, including expired ones not yet swept.
func (m *MemoryTokenManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
