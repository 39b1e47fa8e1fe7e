// Package storage persists identities, sessions and generated documents.
// Three backends implement the same Store interface: SQLite for durable
// single-node deployments, in-memory for tests and throwaway runs, and
// Redis for shared deployments.
package storage

import (
	"context"
	"time"

	"git.home.luguber.info/inful/readmegen/internal/config"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

// Identity is an authenticated GitHub user known to the service. The access
// token is operational state and never serializes into API responses or
// documents.
type Identity struct {
	ID          string    `json:"id"`
	GitHubID    int64     `json:"githubId"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatarUrl"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Session maps an opaque ID to an identity.
type Session struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identityId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GenerationRecord is one completed generation run. Records are created
// once and never updated.
type GenerationRecord struct {
	ID         string                    `json:"id"`
	IdentityID string                    `json:"identityId,omitempty"`
	SourceURL  string                    `json:"sourceUrl"`
	Owner      string                    `json:"owner"`
	Name       string                    `json:"name"`
	Markdown   string                    `json:"markdown"`
	Profile    github.RepositoryProfile  `json:"profile"`
	Settings   config.GenerationSettings `json:"settings"`
	Private    bool                      `json:"private"`
	CreatedAt  time.Time                 `json:"createdAt"`
}

// Stats summarizes store contents for the heartbeat job.
type Stats struct {
	Identities  int64 `json:"identities"`
	Sessions    int64 `json:"sessions"`
	Generations int64 `json:"generations"`
}

// Store is the persistence contract. Lookups for absent rows return a
// not_found classified error.
type Store interface {
	CreateIdentity(ctx context.Context, identity *Identity) error
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	GetIdentityByGitHubID(ctx context.Context, githubID int64) (*Identity, error)
	UpdateIdentity(ctx context.Context, identity *Identity) error

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error

	CreateGeneration(ctx context.Context, record *GenerationRecord) error
	GetGeneration(ctx context.Context, id string) (*GenerationRecord, error)
	// RecentGenerations returns the newest records first. A non-empty
	// identityID restricts results to that identity.
	RecentGenerations(ctx context.Context, limit int, identityID string) ([]*GenerationRecord, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
