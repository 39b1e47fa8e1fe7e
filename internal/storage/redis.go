package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	identityKeyPrefix   = "readmegen:identity:"
	identityByGitHubKey = "readmegen:identity_by_github:"
	identityIndexKey    = "readmegen:identities"
	sessionKeyPrefix    = "readmegen:session:"
	sessionIndexKey     = "readmegen:sessions"
	generationKeyPrefix = "readmegen:generation:"
	recentIndexKey      = "readmegen:generations:recent"
	identityRecentKey   = "readmegen:generations:by_identity:"
)

// RedisStore implements Store on a Redis server. Records are JSON values;
// recency queries go through sorted sets scored by creation time.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, username, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) CreateIdentity(ctx context.Context, identity *Identity) error {
	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	payload, err := marshalIdentity(identity)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, identityKeyPrefix+identity.ID, payload, 0)
	pipe.Set(ctx, fmt.Sprintf("%s%d", identityByGitHubKey, identity.GitHubID), identity.ID, 0)
	pipe.SAdd(ctx, identityIndexKey, identity.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("write identity", err)
	}
	return nil
}

func (s *RedisStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	raw, err := s.client.Get(ctx, identityKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound("identity")
	}
	if err != nil {
		return nil, storageErr("read identity", err)
	}
	return unmarshalIdentity(raw)
}

func (s *RedisStore) GetIdentityByGitHubID(ctx context.Context, githubID int64) (*Identity, error) {
	id, err := s.client.Get(ctx, fmt.Sprintf("%s%d", identityByGitHubKey, githubID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, notFound("identity")
	}
	if err != nil {
		return nil, storageErr("read identity mapping", err)
	}
	return s.GetIdentity(ctx, id)
}

func (s *RedisStore) UpdateIdentity(ctx context.Context, identity *Identity) error {
	existing, err := s.GetIdentity(ctx, identity.ID)
	if err != nil {
		return err
	}
	identity.CreatedAt = existing.CreatedAt
	identity.UpdatedAt = time.Now()

	payload, err := marshalIdentity(identity)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, identityKeyPrefix+identity.ID, payload, 0).Err(); err != nil {
		return storageErr("write identity", err)
	}
	return nil
}

func (s *RedisStore) CreateSession(ctx context.Context, session *Session) error {
	session.CreatedAt = time.Now()
	payload, err := json.Marshal(session)
	if err != nil {
		return storageErr("marshal session", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, 0)
	pipe.SAdd(ctx, sessionIndexKey, session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("write session", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound("session")
	}
	if err != nil {
		return nil, storageErr("read session", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, storageErr("unmarshal session", err)
	}
	return &session, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.SRem(ctx, sessionIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("delete session", err)
	}
	return nil
}

func (s *RedisStore) CreateGeneration(ctx context.Context, record *GenerationRecord) error {
	record.CreatedAt = time.Now()
	payload, err := json.Marshal(record)
	if err != nil {
		return storageErr("marshal generation", err)
	}

	score := float64(record.CreatedAt.UnixNano())
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, generationKeyPrefix+record.ID, payload, 0)
	pipe.ZAdd(ctx, recentIndexKey, redis.Z{Score: score, Member: record.ID})
	if record.IdentityID != "" {
		pipe.ZAdd(ctx, identityRecentKey+record.IdentityID, redis.Z{Score: score, Member: record.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("write generation", err)
	}
	return nil
}

func (s *RedisStore) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	raw, err := s.client.Get(ctx, generationKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound("generation")
	}
	if err != nil {
		return nil, storageErr("read generation", err)
	}

	var record GenerationRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, storageErr("unmarshal generation", err)
	}
	return &record, nil
}

func (s *RedisStore) RecentGenerations(ctx context.Context, limit int, identityID string) ([]*GenerationRecord, error) {
	index := recentIndexKey
	if identityID != "" {
		index = identityRecentKey + identityID
	}

	ids, err := s.client.ZRevRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, storageErr("read recency index", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = generationKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storageErr("read generations", err)
	}

	records := make([]*GenerationRecord, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // index entry without a value, skip
		}
		var record GenerationRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, storageErr("unmarshal generation", err)
		}
		records = append(records, &record)
	}
	return records, nil
}

func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	pipe := s.client.Pipeline()
	identities := pipe.SCard(ctx, identityIndexKey)
	sessions := pipe.SCard(ctx, sessionIndexKey)
	generations := pipe.ZCard(ctx, recentIndexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storageErr("read stats", err)
	}

	return &Stats{
		Identities:  identities.Val(),
		Sessions:    sessions.Val(),
		Generations: generations.Val(),
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// marshalIdentity serializes an identity including the access token, which
// json.Marshal would drop because of the json:"-" tag. The token only ever
// lands inside the store, never on the wire.
func marshalIdentity(identity *Identity) ([]byte, error) {
	type stored struct {
		Identity
		Token string `json:"token"`
	}
	payload, err := json.Marshal(stored{Identity: *identity, Token: identity.AccessToken})
	if err != nil {
		return nil, storageErr("marshal identity", err)
	}
	return payload, nil
}

func unmarshalIdentity(raw []byte) (*Identity, error) {
	var stored struct {
		Identity
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, storageErr("unmarshal identity", err)
	}
	identity := stored.Identity
	identity.AccessToken = stored.Token
	return &identity, nil
}
