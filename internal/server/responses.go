package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/readmegen/internal/config"
	"git.home.luguber.info/inful/readmegen/internal/generator"
	"git.home.luguber.info/inful/readmegen/internal/github"
	"git.home.luguber.info/inful/readmegen/internal/storage"
)

// GenerateRequest is the body of POST /api/generate-readme.
type GenerateRequest struct {
	RepositoryURL string                `json:"repositoryUrl"`
	Settings      *config.SettingsPatch `json:"settings,omitempty"`
}

// ValidateRequest is the body of POST /api/validate-repository.
type ValidateRequest struct {
	RepositoryURL string `json:"repositoryUrl"`
}

// GenerateResponse is the result of a successful generation.
type GenerateResponse struct {
	ID              string                    `json:"id"`
	MarkdownContent string                    `json:"markdownContent"`
	RepositoryData  *github.RepositoryProfile `json:"repositoryData"`
	ProcessingSteps []generator.Step          `json:"processingSteps,omitempty"`
	CreatedAt       int64                     `json:"createdAt,omitempty"`
}

// ValidateResponse reports whether a repository URL resolves to an
// accessible repository.
type ValidateResponse struct {
	Valid      bool                      `json:"valid"`
	Repository *github.RepositoryProfile `json:"repository,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// RecentGeneration is one entry of the recent-generations listing. The
// document body is omitted; clients fetch it by ID.
type RecentGeneration struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	SourceURL string `json:"sourceUrl"`
	Private   bool   `json:"private"`
	CreatedAt int64  `json:"createdAt"`
}

// UserResponse is the sanitized identity shape. It never carries the
// access token.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Email     string `json:"email,omitempty"`
}

func toRecentGeneration(record *storage.GenerationRecord) RecentGeneration {
	return RecentGeneration{
		ID:        record.ID,
		Owner:     record.Owner,
		Name:      record.Name,
		SourceURL: record.SourceURL,
		Private:   record.Private,
		CreatedAt: record.CreatedAt.Unix(),
	}
}

func toUserResponse(identity *storage.Identity) UserResponse {
	return UserResponse{
		ID:        identity.ID,
		Username:  identity.Username,
		AvatarURL: identity.AvatarURL,
		Email:     identity.Email,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}
