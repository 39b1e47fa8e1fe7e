// Package identity resolves GitHub OAuth sign-ins to stored identities and
// sessions.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/github"
	"git.home.luguber.info/inful/readmegen/internal/storage"
)

const (
	oauthAuthorizeURL = "https://github.com/login/oauth/authorize"
	oauthTokenURL     = "https://github.com/login/oauth/access_token"
	oauthScope        = "repo,user:email"
)

// GitHubUser is the subset of the authenticated-user payload the service
// needs.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

// Service implements the OAuth exchange and identity bookkeeping.
type Service struct {
	httpClient   *http.Client
	store        storage.Store
	clientID     string
	clientSecret string
	redirectURL  string
	apiURL       string
	tokenURL     string
	authorizeURL string
}

// NewService creates an identity service. oauth may be nil when sign-in is
// not configured; AuthURL and ExchangeCode then fail with a config error.
func NewService(store storage.Store, oauth *config.OAuthConfig, apiURL string) *Service {
	s := &Service{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		store:        store,
		apiURL:       apiURL,
		tokenURL:     oauthTokenURL,
		authorizeURL: oauthAuthorizeURL,
	}
	if s.apiURL == "" {
		s.apiURL = "https://api.github.com"
	}
	if oauth != nil {
		s.clientID = oauth.ClientID
		s.clientSecret = oauth.ClientSecret
		s.redirectURL = oauth.RedirectURL
	}
	return s
}

// Enabled reports whether OAuth sign-in is configured.
func (s *Service) Enabled() bool {
	return s.clientID != "" && s.clientSecret != ""
}

// AuthURL builds the GitHub authorization redirect for the given state.
func (s *Service) AuthURL(state string) (string, error) {
	if !s.Enabled() {
		return "", apperrors.ConfigError("GitHub OAuth is not configured").Build()
	}

	params := url.Values{}
	params.Set("client_id", s.clientID)
	if s.redirectURL != "" {
		params.Set("redirect_uri", s.redirectURL)
	}
	params.Set("scope", oauthScope)
	params.Set("state", state)

	return s.authorizeURL + "?" + params.Encode(), nil
}

// NewState produces an unguessable state value for the OAuth round trip.
func NewState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ExchangeCode trades an authorization code for an access token.
func (s *Service) ExchangeCode(ctx context.Context, code string) (string, error) {
	if !s.Enabled() {
		return "", apperrors.ConfigError("GitHub OAuth is not configured").Build()
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
		"code":          code,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.CategoryAuth, "OAuth token exchange failed").Build()
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperrors.WrapError(err, apperrors.CategoryAuth, "malformed OAuth response").Build()
	}
	if result.Error != "" {
		return "", apperrors.AccessDeniedError(fmt.Sprintf("OAuth error: %s", result.ErrorDescription)).Build()
	}
	if result.AccessToken == "" {
		return "", apperrors.AccessDeniedError("OAuth exchange returned no token").Build()
	}

	return result.AccessToken, nil
}

// FetchGitHubUser loads the authenticated user. A missing public email is
// filled from the email endpoint on a best-effort basis; a denied email
// scope is not an error.
func (s *Service) FetchGitHubUser(ctx context.Context, token string) (*GitHubUser, error) {
	var user GitHubUser
	if err := s.apiGet(ctx, token, "/user", &user); err != nil {
		return nil, apperrors.WrapError(err, apperrors.CategoryAuth, "could not load GitHub user").Build()
	}

	if user.Email == "" {
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := s.apiGet(ctx, token, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary {
					user.Email = e.Email
					break
				}
			}
		}
	}

	return &user, nil
}

// FindOrCreate looks an identity up by GitHub ID, updating the stored
// token, avatar and email on re-sign-in, or creates a new identity.
func (s *Service) FindOrCreate(ctx context.Context, ghUser *GitHubUser, token string) (*storage.Identity, error) {
	existing, err := s.store.GetIdentityByGitHubID(ctx, ghUser.ID)
	if err == nil {
		existing.Username = ghUser.Login
		existing.AvatarURL = ghUser.AvatarURL
		existing.Email = ghUser.Email
		existing.AccessToken = token
		if err := s.store.UpdateIdentity(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !apperrors.HasCategory(err, apperrors.CategoryNotFound) {
		return nil, err
	}

	identity := &storage.Identity{
		ID:          uuid.NewString(),
		GitHubID:    ghUser.ID,
		Username:    ghUser.Login,
		AvatarURL:   ghUser.AvatarURL,
		Email:       ghUser.Email,
		AccessToken: token,
	}
	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// CreateSession stores a fresh opaque session for an identity.
func (s *Service) CreateSession(ctx context.Context, identityID string) (*storage.Session, error) {
	session := &storage.Session{ID: uuid.NewString(), IdentityID: identityID}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve maps a session ID to its identity. An unknown or empty session
// yields nil without error; callers treat that as anonymous.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*storage.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if apperrors.HasCategory(err, apperrors.CategoryNotFound) {
			return nil, nil
		}
		return nil, err
	}
	identity, err := s.store.GetIdentity(ctx, session.IdentityID)
	if err != nil {
		if apperrors.HasCategory(err, apperrors.CategoryNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return identity, nil
}

// Logout deletes a session. Unknown sessions are fine.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, sessionID)
}

// ValidateToken reports whether an access token still authenticates.
func (s *Service) ValidateToken(ctx context.Context, token string) bool {
	return github.NewClient(s.apiURL, token).ValidateToken(ctx)
}

func (s *Service) apiGet(ctx context.Context, token, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GitHub API error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
