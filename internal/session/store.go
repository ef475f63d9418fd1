package session

import (
	"context"
	"sync"

	"loto-issuer/internal/domain"
)

// Store is the persistence backend for the bearer token and the cached
// profile. An absent token is the empty string; an absent profile is nil.
// Business logic never touches storage directly, only through Manager.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	Profile(ctx context.Context) (*domain.Profile, error)
	SetProfile(ctx context.Context, profile *domain.Profile) error
	ClearProfile(ctx context.Context) error
}

// MemoryStore keeps the session in process memory. Used in tests and as
// the fallback when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	profile *domain.Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) ClearToken(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func (s *MemoryStore) Profile(_ context.Context) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, nil
	}
	p := *s.profile
	return &p, nil
}

func (s *MemoryStore) SetProfile(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile == nil {
		s.profile = nil
		return nil
	}
	p := *profile
	s.profile = &p
	return nil
}

func (s *MemoryStore) ClearProfile(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	return nil
}
