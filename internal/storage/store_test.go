package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

// runStoreTests exercises the Store contract against every backend.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("identity lifecycle", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		identity := &Identity{
			ID:          "id-1",
			GitHubID:    1001,
			Username:    "octocat",
			AvatarURL:   "https://example.com/a.png",
			Email:       "octocat@example.com",
			AccessToken: "gho_secret",
		}
		require.NoError(t, store.CreateIdentity(ctx, identity))

		got, err := store.GetIdentity(ctx, "id-1")
		require.NoError(t, err)
		assert.Equal(t, "octocat", got.Username)
		assert.Equal(t, "gho_secret", got.AccessToken)

		byGH, err := store.GetIdentityByGitHubID(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, "id-1", byGH.ID)

		got.Username = "octocat2"
		got.AccessToken = "gho_rotated"
		require.NoError(t, store.UpdateIdentity(ctx, got))

		updated, err := store.GetIdentity(ctx, "id-1")
		require.NoError(t, err)
		assert.Equal(t, "octocat2", updated.Username)
		assert.Equal(t, "gho_rotated", updated.AccessToken)

		_, err = store.GetIdentity(ctx, "missing")
		assert.True(t, apperrors.HasCategory(err, apperrors.CategoryNotFound))
	})

	t.Run("sessions", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.CreateSession(ctx, &Session{ID: "sess-1", IdentityID: "id-1"}))

		session, err := store.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "id-1", session.IdentityID)

		require.NoError(t, store.DeleteSession(ctx, "sess-1"))
		_, err = store.GetSession(ctx, "sess-1")
		assert.True(t, apperrors.HasCategory(err, apperrors.CategoryNotFound))

		// Deleting an absent session is not an error.
		assert.NoError(t, store.DeleteSession(ctx, "sess-1"))
	})

	t.Run("generations", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		for i := 1; i <= 5; i++ {
			identityID := ""
			if i%2 == 0 {
				identityID = "id-1"
			}
			record := &GenerationRecord{
				ID:         fmt.Sprintf("gen-%d", i),
				IdentityID: identityID,
				SourceURL:  "https://github.com/octocat/hello-world",
				Owner:      "octocat",
				Name:       "hello-world",
				Markdown:   fmt.Sprintf("# doc %d", i),
				Profile:    github.RepositoryProfile{Owner: "octocat", Name: "hello-world", Stars: i},
				Settings:   config.DefaultSettings(),
			}
			require.NoError(t, store.CreateGeneration(ctx, record))
		}

		got, err := store.GetGeneration(ctx, "gen-3")
		require.NoError(t, err)
		assert.Equal(t, "# doc 3", got.Markdown)
		assert.Equal(t, 3, got.Profile.Stars)
		assert.Equal(t, config.StyleProfessional, got.Settings.Style)

		recent, err := store.RecentGenerations(ctx, 3, "")
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "gen-5", recent[0].ID)
		assert.Equal(t, "gen-4", recent[1].ID)
		assert.Equal(t, "gen-3", recent[2].ID)

		mine, err := store.RecentGenerations(ctx, 10, "id-1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "gen-4", mine[0].ID)
		assert.Equal(t, "gen-2", mine[1].ID)

		_, err = store.GetGeneration(ctx, "missing")
		assert.True(t, apperrors.HasCategory(err, apperrors.CategoryNotFound))
	})

	t.Run("stats", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.CreateIdentity(ctx, &Identity{ID: "id-1", GitHubID: 1}))
		require.NoError(t, store.CreateSession(ctx, &Session{ID: "sess-1", IdentityID: "id-1"}))
		require.NoError(t, store.CreateGeneration(ctx, &GenerationRecord{ID: "gen-1"}))

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Identities)
		assert.Equal(t, int64(1), stats.Sessions)
		assert.Equal(t, int64(1), stats.Generations)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestRedisStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		store, err := NewRedisStore(context.Background(), mr.Addr(), "", "", 0)
		require.NoError(t, err)
		return store
	})
}
