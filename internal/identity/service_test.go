package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/storage"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, storage.Store) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {}
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore()
	svc := NewService(store, &config.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:5000/auth/github/callback",
	}, srv.URL)
	svc.tokenURL = srv.URL + "/login/oauth/access_token"
	svc.authorizeURL = srv.URL + "/login/oauth/authorize"
	return svc, store
}

func TestAuthURL(t *testing.T) {
	svc, _ := newTestService(t, nil)
	u, err := svc.AuthURL("state-123")
	if err != nil {
		t.Fatalf("AuthURL: %v", err)
	}
	for _, want := range []string{"client_id=client-id", "state=state-123", "scope=repo%2Cuser%3Aemail"} {
		if !strings.Contains(u, want) {
			t.Errorf("auth URL missing %q: %s", want, u)
		}
	}

	unconfigured := NewService(storage.NewMemoryStore(), nil, "")
	if _, err := unconfigured.AuthURL("x"); err == nil {
		t.Error("expected config error without OAuth credentials")
	}
}

func TestExchangeCode(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/oauth/access_token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["code"] != "the-code" || body["client_secret"] != "client-secret" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "gho_token"})
	})

	token, err := svc.ExchangeCode(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if token != "gho_token" {
		t.Errorf("token = %q", token)
	}
}

func TestExchangeCode_OAuthError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code is incorrect",
		})
	})

	_, err := svc.ExchangeCode(context.Background(), "stale")
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.HasCategory(err, apperrors.CategoryAuth) {
		t.Errorf("category = %v", apperrors.GetCategory(err))
	}
}

func TestFetchGitHubUser_EmailFallback(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			json.NewEncoder(w).Encode(map[string]any{
				"id": 1001, "login": "octocat", "avatar_url": "https://example.com/a.png",
			})
		case "/user/emails":
			json.NewEncoder(w).Encode([]map[string]any{
				{"email": "secondary@example.com", "primary": false},
				{"email": "primary@example.com", "primary": true},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	user, err := svc.FetchGitHubUser(context.Background(), "gho_token")
	if err != nil {
		t.Fatalf("FetchGitHubUser: %v", err)
	}
	if user.Login != "octocat" || user.ID != 1001 {
		t.Errorf("user = %+v", user)
	}
	if user.Email != "primary@example.com" {
		t.Errorf("email = %q, want primary", user.Email)
	}
}

func TestFetchGitHubUser_EmailScopeDenied(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			json.NewEncoder(w).Encode(map[string]any{"id": 1001, "login": "octocat"})
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	})

	user, err := svc.FetchGitHubUser(context.Background(), "gho_token")
	if err != nil {
		t.Fatalf("email scope denial must not fail the lookup: %v", err)
	}
	if user.Email != "" {
		t.Errorf("email = %q, want empty", user.Email)
	}
}

func TestFindOrCreate(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	ghUser := &GitHubUser{ID: 1001, Login: "octocat", AvatarURL: "https://a/1.png", Email: "one@example.com"}
	created, err := svc.FindOrCreate(ctx, ghUser, "token-1")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if created.ID == "" || created.AccessToken != "token-1" {
		t.Errorf("created = %+v", created)
	}

	// Re-sign-in with rotated token and new avatar updates in place.
	ghUser.AvatarURL = "https://a/2.png"
	again, err := svc.FindOrCreate(ctx, ghUser, "token-2")
	if err != nil {
		t.Fatalf("FindOrCreate again: %v", err)
	}
	if again.ID != created.ID {
		t.Error("re-sign-in must reuse the identity")
	}

	stored, err := store.GetIdentity(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.AccessToken != "token-2" || stored.AvatarURL != "https://a/2.png" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestResolveAndLogout(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	identity, err := svc.FindOrCreate(ctx, &GitHubUser{ID: 1, Login: "octocat"}, "tok")
	if err != nil {
		t.Fatal(err)
	}
	session, err := svc.CreateSession(ctx, identity.ID)
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := svc.Resolve(ctx, session.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved == nil || resolved.ID != identity.ID {
		t.Errorf("resolved = %+v", resolved)
	}

	// Unknown and empty sessions resolve to anonymous without error.
	if got, err := svc.Resolve(ctx, "nope"); err != nil || got != nil {
		t.Errorf("unknown session: %v, %v", got, err)
	}
	if got, err := svc.Resolve(ctx, ""); err != nil || got != nil {
		t.Errorf("empty session: %v, %v", got, err)
	}

	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got, _ := svc.Resolve(ctx, session.ID); got != nil {
		t.Error("session must be gone after logout")
	}
}
