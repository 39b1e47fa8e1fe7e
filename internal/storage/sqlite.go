package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates a SQLite-backed store. Use ":memory:" for
// an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		github_id INTEGER NOT NULL UNIQUE,
		username TEXT NOT NULL,
		avatar_url TEXT,
		email TEXT,
		access_token TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		identity_id TEXT,
		source_url TEXT NOT NULL,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		markdown TEXT NOT NULL,
		profile TEXT NOT NULL,
		settings TEXT NOT NULL,
		private INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
	CREATE INDEX IF NOT EXISTS idx_generations_identity ON generations(identity_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateIdentity(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO identities (id, github_id, username, avatar_url, email, access_token, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		identity.ID, identity.GitHubID, identity.Username, identity.AvatarURL, identity.Email, identity.AccessToken, now, now,
	)
	if err != nil {
		return storageErr("insert identity", err)
	}
	identity.CreatedAt = time.Unix(0, now)
	identity.UpdatedAt = identity.CreatedAt
	return nil
}

func (s *SQLiteStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanIdentity(s.db.QueryRowContext(ctx,
		"SELECT id, github_id, username, avatar_url, email, access_token, created_at, updated_at FROM identities WHERE id = ?", id))
}

func (s *SQLiteStore) GetIdentityByGitHubID(ctx context.Context, githubID int64) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanIdentity(s.db.QueryRowContext(ctx,
		"SELECT id, github_id, username, avatar_url, email, access_token, created_at, updated_at FROM identities WHERE github_id = ?", githubID))
}

func (s *SQLiteStore) scanIdentity(row *sql.Row) (*Identity, error) {
	var identity Identity
	var created, updated int64
	err := row.Scan(&identity.ID, &identity.GitHubID, &identity.Username, &identity.AvatarURL, &identity.Email, &identity.AccessToken, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("identity")
	}
	if err != nil {
		return nil, storageErr("scan identity", err)
	}
	identity.CreatedAt = time.Unix(0, created)
	identity.UpdatedAt = time.Unix(0, updated)
	return &identity, nil
}

func (s *SQLiteStore) UpdateIdentity(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()
	res, err := s.db.ExecContext(ctx,
		"UPDATE identities SET username = ?, avatar_url = ?, email = ?, access_token = ?, updated_at = ? WHERE id = ?",
		identity.Username, identity.AvatarURL, identity.Email, identity.AccessToken, now, identity.ID,
	)
	if err != nil {
		return storageErr("update identity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("identity")
	}
	identity.UpdatedAt = time.Unix(0, now)
	return nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, identity_id, created_at) VALUES (?, ?, ?)",
		session.ID, session.IdentityID, now,
	)
	if err != nil {
		return storageErr("insert session", err)
	}
	session.CreatedAt = time.Unix(0, now)
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var session Session
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, identity_id, created_at FROM sessions WHERE id = ?", id,
	).Scan(&session.ID, &session.IdentityID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("session")
	}
	if err != nil {
		return nil, storageErr("scan session", err)
	}
	session.CreatedAt = time.Unix(0, created)
	return &session, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return storageErr("delete session", err)
	}
	return nil
}

func (s *SQLiteStore) CreateGeneration(ctx context.Context, record *GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profileJSON, err := json.Marshal(record.Profile)
	if err != nil {
		return storageErr("marshal profile", err)
	}
	settingsJSON, err := json.Marshal(record.Settings)
	if err != nil {
		return storageErr("marshal settings", err)
	}

	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO generations (id, identity_id, source_url, owner, name, markdown, profile, settings, private, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.IdentityID, record.SourceURL, record.Owner, record.Name, record.Markdown, profileJSON, settingsJSON, boolToInt(record.Private), now,
	)
	if err != nil {
		return storageErr("insert generation", err)
	}
	record.CreatedAt = time.Unix(0, now)
	return nil
}

func (s *SQLiteStore) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, identity_id, source_url, owner, name, markdown, profile, settings, private, created_at FROM generations WHERE id = ?", id)
	if err != nil {
		return nil, storageErr("query generation", err)
	}
	defer rows.Close()

	records, err := s.scanGenerations(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFound("generation")
	}
	return records[0], nil
}

func (s *SQLiteStore) RecentGenerations(ctx context.Context, limit int, identityID string) ([]*GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, identity_id, source_url, owner, name, markdown, profile, settings, private, created_at FROM generations"
	args := []any{}
	if identityID != "" {
		query += " WHERE identity_id = ?"
		args = append(args, identityID)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query generations", err)
	}
	defer rows.Close()

	return s.scanGenerations(rows)
}

func (s *SQLiteStore) scanGenerations(rows *sql.Rows) ([]*GenerationRecord, error) {
	var records []*GenerationRecord
	for rows.Next() {
		var record GenerationRecord
		var profileJSON, settingsJSON []byte
		var private int
		var created int64
		if err := rows.Scan(&record.ID, &record.IdentityID, &record.SourceURL, &record.Owner, &record.Name, &record.Markdown, &profileJSON, &settingsJSON, &private, &created); err != nil {
			return nil, storageErr("scan generation", err)
		}
		if err := json.Unmarshal(profileJSON, &record.Profile); err != nil {
			return nil, storageErr("unmarshal profile", err)
		}
		if err := json.Unmarshal(settingsJSON, &record.Settings); err != nil {
			return nil, storageErr("unmarshal settings", err)
		}
		record.Private = private != 0
		record.CreatedAt = time.Unix(0, created)
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	for _, q := range []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM identities", &stats.Identities},
		{"SELECT COUNT(*) FROM sessions", &stats.Sessions},
		{"SELECT COUNT(*) FROM generations", &stats.Generations},
	} {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, storageErr("count rows", err)
		}
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(kind string) error {
	return apperrors.NotFoundError(kind + " not found").Build()
}

func storageErr(op string, err error) error {
	return apperrors.WrapError(err, apperrors.CategoryStorage, op+" failed").Build()
}
