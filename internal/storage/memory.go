package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process maps. It backs tests and
// ephemeral runs; nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	identities  map[string]*Identity
	sessions    map[string]*Session
	generations map[string]*GenerationRecord
	order       []string // generation IDs in insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities:  make(map[string]*Identity),
		sessions:    make(map[string]*Session),
		generations: make(map[string]*GenerationRecord),
	}
}

func (s *MemoryStore) CreateIdentity(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	copied := *identity
	s.identities[identity.ID] = &copied
	return nil
}

func (s *MemoryStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, notFound("identity")
	}
	copied := *identity
	return &copied, nil
}

func (s *MemoryStore) GetIdentityByGitHubID(ctx context.Context, githubID int64) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if identity.GitHubID == githubID {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, notFound("identity")
}

func (s *MemoryStore) UpdateIdentity(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.identities[identity.ID]
	if !ok {
		return notFound("identity")
	}
	identity.CreatedAt = existing.CreatedAt
	identity.UpdatedAt = time.Now()
	copied := *identity
	s.identities[identity.ID] = &copied
	return nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.CreatedAt = time.Now()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, notFound("session")
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) CreateGeneration(ctx context.Context, record *GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.CreatedAt = time.Now()
	copied := *record
	s.generations[record.ID] = &copied
	s.order = append(s.order, record.ID)
	return nil
}

func (s *MemoryStore) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.generations[id]
	if !ok {
		return nil, notFound("generation")
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) RecentGenerations(ctx context.Context, limit int, identityID string) ([]*GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*GenerationRecord
	for i := len(s.order) - 1; i >= 0 && len(records) < limit; i-- {
		record := s.generations[s.order[i]]
		if identityID != "" && record.IdentityID != identityID {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].CreatedAt.After(records[b].CreatedAt)
	})
	return records, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Stats{
		Identities:  int64(len(s.identities)),
		Sessions:    int64(len(s.sessions)),
		Generations: int64(len(s.generations)),
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
