package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/generator"
	"git.home.luguber.info/inful/readmegen/internal/github"
	"git.home.luguber.info/inful/readmegen/internal/observability"
	"git.home.luguber.info/inful/readmegen/internal/storage"
)

// resolveIdentity maps the session cookie to a stored identity. Anonymous
// callers get nil without error.
func (s *Server) resolveIdentity(r *http.Request) (*storage.Identity, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}
	return s.opts.Identity.Resolve(r.Context(), cookie.Value)
}

// tokenFor picks the credential for GitHub reads: the identity's token when
// signed in, the configured fallback otherwise.
func (s *Server) tokenFor(identity *storage.Identity) string {
	if identity != nil && identity.AccessToken != "" {
		return identity.AccessToken
	}
	return s.opts.FallbackToken
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.ValidationError("request body must be JSON").Build())
		return
	}
	if req.RepositoryURL == "" {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.ValidationError("repositoryUrl is required").Build())
		return
	}

	identity, err := s.resolveIdentity(r)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	settings := config.ApplyPatch(s.currentDefaults(), req.Settings)
	runID := uuid.NewString()

	ctx := observability.WithRunID(r.Context(), runID)
	if identity != nil {
		ctx = observability.WithIdentityID(ctx, identity.ID)
	}

	s.opts.Publisher.Started(runID, req.RepositoryURL)

	result, err := s.opts.Generator.Run(ctx, req.RepositoryURL, settings, s.tokenFor(identity), nil)
	if err != nil {
		s.opts.Publisher.Failed(runID, req.RepositoryURL, err.Error())
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.opts.Publisher.Completed(runID, result.Profile.FullName)

	record := &storage.GenerationRecord{
		ID:        runID,
		SourceURL: req.RepositoryURL,
		Owner:     result.Profile.Owner,
		Name:      result.Profile.Name,
		Markdown:  result.Markdown,
		Profile:   *result.Profile,
		Settings:  settings,
		Private:   result.Profile.Private,
	}
	if identity != nil {
		record.IdentityID = identity.ID
	}
	if err := s.opts.Store.CreateGeneration(ctx, record); err != nil {
		observability.WarnContext(ctx, "failed to persist generation")
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		ID:              runID,
		MarkdownContent: result.Markdown,
		RepositoryData:  result.Profile,
		ProcessingSteps: result.Steps,
	})
}

// handleGenerateStream runs a generation while streaming step transitions
// as server-sent events, finishing with a complete or error event.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.ValidationError("url query parameter is required").Build())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.InternalError("streaming unsupported").Build())
		return
	}

	identity, err := s.resolveIdentity(r)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	settings := s.currentDefaults()
	patch := settingsPatchFromQuery(r)
	settings = config.ApplyPatch(settings, patch)

	runID := uuid.NewString()
	ctx := observability.WithRunID(r.Context(), runID)
	if identity != nil {
		ctx = observability.WithIdentityID(ctx, identity.ID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeEvent := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	sink := generator.ProgressFunc(func(steps []generator.Step) {
		writeEvent("progress", steps)
	})

	s.opts.Publisher.Started(runID, rawURL)

	result, err := s.opts.Generator.Run(ctx, rawURL, settings, s.tokenFor(identity), sink)
	if err != nil {
		s.opts.Publisher.Failed(runID, rawURL, err.Error())
		writeEvent("error", s.errorAdapter.FormatErrorResponse(err))
		return
	}
	s.opts.Publisher.Completed(runID, result.Profile.FullName)

	record := &storage.GenerationRecord{
		ID:        runID,
		SourceURL: rawURL,
		Owner:     result.Profile.Owner,
		Name:      result.Profile.Name,
		Markdown:  result.Markdown,
		Profile:   *result.Profile,
		Settings:  settings,
		Private:   result.Profile.Private,
	}
	if identity != nil {
		record.IdentityID = identity.ID
	}
	if err := s.opts.Store.CreateGeneration(ctx, record); err != nil {
		observability.WarnContext(ctx, "failed to persist generation")
	}

	writeEvent("complete", GenerateResponse{
		ID:              runID,
		MarkdownContent: result.Markdown,
		RepositoryData:  result.Profile,
		ProcessingSteps: result.Steps,
	})
}

// settingsPatchFromQuery picks up the stream endpoint's optional style and
// length overrides. Section and badge flags come from the defaults.
func settingsPatchFromQuery(r *http.Request) *config.SettingsPatch {
	patch := &config.SettingsPatch{}
	if style := r.URL.Query().Get("style"); style != "" {
		patch.Style = &style
	}
	if length := r.URL.Query().Get("length"); length != "" {
		patch.Length = &length
	}
	return patch
}

func (s *Server) handleGetReadme(w http.ResponseWriter, r *http.Request) {
	record, err := s.opts.Store.GetGeneration(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		ID:              record.ID,
		MarkdownContent: record.Markdown,
		RepositoryData:  &record.Profile,
		CreatedAt:       record.CreatedAt.Unix(),
	})
}

func (s *Server) handleDownloadReadme(w http.ResponseWriter, r *http.Request) {
	record, err := s.opts.Store.GetGeneration(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="README.md"`)
	_, _ = w.Write([]byte(record.Markdown))
}

func (s *Server) handlePreviewReadme(w http.ResponseWriter, r *http.Request) {
	record, err := s.opts.Store.GetGeneration(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(record.Markdown), &buf); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.WrapError(err, apperrors.CategoryInternal, "Markdown rendering failed").Build())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRecentGenerations(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorAdapter.WriteErrorResponse(w, r,
				apperrors.ValidationError("limit must be a positive integer").Build())
			return
		}
		limit = n
	}
	if limit > 50 {
		limit = 50
	}

	identity, err := s.resolveIdentity(r)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	identityID := ""
	if identity != nil {
		identityID = identity.ID
	}

	records, err := s.opts.Store.RecentGenerations(r.Context(), limit, identityID)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	out := make([]RecentGeneration, 0, len(records))
	for _, record := range records {
		out = append(out, toRecentGeneration(record))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleValidateRepository reports URL and accessibility problems in the
// body with a 200 status; validation is a question, not a failure.
func (s *Server) handleValidateRepository(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RepositoryURL == "" {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.ValidationError("repositoryUrl is required").Build())
		return
	}

	if _, _, err := github.ParseRepositoryURL(req.RepositoryURL); err != nil {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Error: errorMessage(err)})
		return
	}

	identity, err := s.resolveIdentity(r)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	inspector := s.opts.InspectorFor(s.tokenFor(identity))
	profile, err := inspector.FetchProfile(r.Context(), req.RepositoryURL)
	if err != nil {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Error: errorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Repository: profile})
}

// errorMessage extracts the user-facing message without internal context.
func errorMessage(err error) string {
	if c, ok := apperrors.AsClassified(err); ok {
		return c.Message()
	}
	return err.Error()
}

func (s *Server) handleAuthRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := newOAuthState()
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.InternalError("could not create OAuth state").Build())
		return
	}

	authURL, err := s.opts.Identity.AuthURL(state)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	s.rememberState(state)
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.ValidationError("missing state or code").Build())
		return
	}
	if !s.consumeState(state) {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.AccessDeniedError("unknown or expired OAuth state").Build())
		return
	}

	token, err := s.opts.Identity.ExchangeCode(r.Context(), code)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	ghUser, err := s.opts.Identity.FetchGitHubUser(r.Context(), token)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	identity, err := s.opts.Identity.FindOrCreate(r.Context(), ghUser, token)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	session, err := s.opts.Identity.CreateSession(r.Context(), identity.ID)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.opts.Identity.Logout(r.Context(), cookie.Value); err != nil {
			s.errorAdapter.WriteErrorResponse(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	identity, err := s.resolveIdentity(r)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if identity == nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			apperrors.AccessDeniedError("not signed in").Build())
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(identity))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
