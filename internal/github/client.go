package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/observability"
)

// readmeCandidates are tried in order; the first file found wins.
var readmeCandidates = []string{"README.md", "readme.md", "README.rst", "README.txt", "README"}

// Client talks to the GitHub REST API on behalf of one credential. The zero
// token yields anonymous, rate-limited access.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

// NewClient creates a GitHub API client. An empty apiURL defaults to the
// public endpoint.
func NewClient(apiURL, token string) *Client {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		token:      token,
	}
}

type githubRepo struct {
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Description     string   `json:"description"`
	Language        string   `json:"language"`
	Topics          []string `json:"topics"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	Homepage        string   `json:"homepage"`
	Private         bool     `json:"private"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
	License *struct {
		Name   string `json:"name"`
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

// FetchProfile retrieves repository metadata for a repository URL.
func (c *Client) FetchProfile(ctx context.Context, rawURL string) (*RepositoryProfile, error) {
	owner, repo, err := ParseRepositoryURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo))
	if err != nil {
		return nil, err
	}

	var gr githubRepo
	if err := c.doRequest(req, &gr); err != nil {
		return nil, classifyFetchError(err, owner, repo)
	}

	profile := &RepositoryProfile{
		Owner:       gr.Owner.Login,
		Name:        gr.Name,
		FullName:    gr.FullName,
		Description: gr.Description,
		Language:    gr.Language,
		Topics:      gr.Topics,
		Stars:       gr.StargazersCount,
		Forks:       gr.ForksCount,
		Homepage:    gr.Homepage,
		Private:     gr.Private,
	}
	if profile.Owner == "" {
		profile.Owner = owner
	}
	if gr.License != nil {
		profile.License = &License{Name: gr.License.Name, SPDXID: gr.License.SPDXID}
	}
	return profile, nil
}

// ListTopLevel returns the entries at the root of the default branch.
func (c *Client) ListTopLevel(ctx context.Context, owner, repo string) ([]TreeEntry, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/contents", owner, repo))
	if err != nil {
		return nil, err
	}

	var entries []TreeEntry
	if err := c.doRequest(req, &entries); err != nil {
		return nil, classifyFetchError(err, owner, repo)
	}
	return entries, nil
}

// FetchManifest retrieves and decodes package.json. It returns nil, nil when
// the file is missing or unparseable; structure analysis degrades instead of
// failing.
func (c *Client) FetchManifest(ctx context.Context, owner, repo string) (*PackageManifest, error) {
	raw, err := c.fetchFileContent(ctx, owner, repo, "package.json")
	if err != nil || raw == "" {
		return nil, nil
	}
	return ParseManifest(raw), nil
}

// ParseManifest decodes a package.json document, returning nil when the
// content is not valid JSON.
func ParseManifest(raw string) *PackageManifest {
	var manifest PackageManifest
	if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
		return nil
	}
	return &manifest
}

// FetchReadme returns the content of the first README candidate present, or
// the empty string when the repository has none.
func (c *Client) FetchReadme(ctx context.Context, owner, repo string) string {
	for _, name := range readmeCandidates {
		if content, err := c.fetchFileContent(ctx, owner, repo, name); err == nil && content != "" {
			return content
		}
	}
	return ""
}

// AnalyzeStructure derives build, framework and technology signals from the
// repository's top level. Sub-fetches run concurrently and degrade
// independently; the result is always usable.
func (c *Client) AnalyzeStructure(ctx context.Context, owner, repo string) ProjectStructure {
	var (
		entries  []TreeEntry
		manifest *PackageManifest
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		manifest, _ = c.FetchManifest(ctx, owner, repo)
	}()
	entries, _ = c.ListTopLevel(ctx, owner, repo)
	<-done

	return DetectStructure(entries, manifest)
}

// ValidateToken reports whether the client's credential can authenticate
// against the API. Any failure counts as invalid.
func (c *Client) ValidateToken(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/user")
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type contentsFile struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

func (c *Client) fetchFileContent(ctx context.Context, owner, repo, filePath string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, filePath))
	if err != nil {
		return "", err
	}

	var file contentsFile
	if err := c.doRequest(req, &file); err != nil {
		return "", err
	}
	if file.Type != "" && file.Type != "file" {
		return "", fmt.Errorf("%s is not a file", filePath)
	}

	// GitHub returns base64 with embedded newlines.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "ReadmeGen/1.0")

	return req, nil
}

// statusError carries the upstream HTTP status for later classification.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GitHub API error: %d %s", e.status, e.message)
}

func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordUpstreamRequest("github", "error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		observability.RecordUpstreamRequest("github", fmt.Sprintf("%d", resp.StatusCode))
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &statusError{status: resp.StatusCode, message: apiErr.Message}
	}
	observability.RecordUpstreamRequest("github", "ok")

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// classifyFetchError maps transport and status failures onto the error
// taxonomy: 404 means the repository does not exist, 401/403 means the
// credential cannot see it, anything else is a transient upstream problem.
func classifyFetchError(err error, owner, repo string) error {
	slug := owner + "/" + repo

	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusNotFound:
			return apperrors.NotFoundError("repository not found").
				WithContext("repository", slug).
				Build()
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.AccessDeniedError("access to repository denied").
				WithContext("repository", slug).
				WithContext("status", se.status).
				Build()
		default:
			return apperrors.WrapError(err, apperrors.CategoryUpstream, "GitHub API request failed").
				Retryable().
				WithContext("repository", slug).
				WithContext("status", se.status).
				Build()
		}
	}

	return apperrors.WrapError(err, apperrors.CategoryUpstream, "GitHub API unreachable").
		Retryable().
		WithContext("repository", slug).
		Build()
}
