package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

func textResponse(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return body
}

func testProfile() *github.RepositoryProfile {
	return &github.RepositoryProfile{
		Owner:       "octocat",
		Name:        "hello-world",
		FullName:    "octocat/hello-world",
		Description: "My first repository",
		Language:    "Go",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "", "")
}

func TestGenerateDescription(t *testing.T) {
	var prompt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		w.Write(textResponse("A fine project."))
	})

	got, err := client.GenerateDescription(context.Background(), testProfile(), github.ProjectStructure{}, config.DefaultSettings())
	if err != nil {
		t.Fatalf("GenerateDescription: %v", err)
	}
	if got != "A fine project." {
		t.Errorf("text = %q", got)
	}
	if !strings.Contains(prompt, "Repository: hello-world") {
		t.Errorf("prompt missing repository name:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Technologies: None") {
		t.Errorf("empty technologies must read None:\n%s", prompt)
	}
}

func TestGenerateFeatures_Structured(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-pro") {
			t.Errorf("structured call must use the pro model, got %s", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SystemInstruction == nil {
			t.Error("expected system instruction")
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Error("expected JSON response config")
		}
		w.Write(textResponse(`["Fast startup", "Typed configuration"]`))
	})

	features, err := client.GenerateFeatures(context.Background(), testProfile(), github.ProjectStructure{}, config.DefaultSettings())
	if err != nil {
		t.Fatalf("GenerateFeatures: %v", err)
	}
	if len(features) != 2 || features[0] != "Fast startup" {
		t.Errorf("features = %v", features)
	}
}

func TestGenerateFeatures_FallbackParsing(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if strings.Contains(r.URL.Path, "gemini-2.5-pro") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.Contents[0].Parts[0].Text, `starting with "- "`) {
			t.Error("fallback prompt missing bullet instruction")
		}
		w.Write(textResponse("Intro line\n- One\n- Two\nnot a bullet\n- Three\n- Four\n- Five\n- Six\n- Seven\n- Eight\n- Nine\n- Ten"))
	})

	features, err := client.GenerateFeatures(context.Background(), testProfile(), github.ProjectStructure{}, config.DefaultSettings())
	if err != nil {
		t.Fatalf("GenerateFeatures: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected structured call plus fallback, got %d calls", calls)
	}
	if len(features) != 8 {
		t.Errorf("features must cap at 8, got %d: %v", len(features), features)
	}
	if features[0] != "One" || features[7] != "Eight" {
		t.Errorf("unexpected parse: %v", features)
	}
}

func TestGenerateAPIDocs_Sentinel(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	got, err := client.GenerateAPIDocs(context.Background(), testProfile(), github.ProjectStructure{}, "")
	if err != nil {
		t.Fatalf("GenerateAPIDocs: %v", err)
	}
	if got != NoAPIDocumentation {
		t.Errorf("expected sentinel, got %q", got)
	}
	if called {
		t.Error("sentinel path must not call the provider")
	}

	// A README alone is not enough; technologies must also be present.
	got, err = client.GenerateAPIDocs(context.Background(), testProfile(), github.ProjectStructure{}, "# Old README")
	if err != nil || got != NoAPIDocumentation {
		t.Errorf("expected sentinel without technologies, got %q, %v", got, err)
	}
	if called {
		t.Error("sentinel path must not call the provider")
	}

	// Technologies alone are not enough either; either missing signal
	// yields the sentinel.
	structure := github.ProjectStructure{Technologies: []string{"Go"}}
	got, err = client.GenerateAPIDocs(context.Background(), testProfile(), structure, "")
	if err != nil || got != NoAPIDocumentation {
		t.Errorf("expected sentinel without README, got %q, %v", got, err)
	}
	if called {
		t.Error("sentinel path must not call the provider")
	}
}

func TestGenerateUsage_ReadmeTruncated(t *testing.T) {
	var prompt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		w.Write(textResponse("usage"))
	})

	longReadme := strings.Repeat("x", 5000)
	manifest := &github.PackageManifest{Scripts: map[string]string{"start": "go run .", "build": "go build"}}
	_, err := client.GenerateUsage(context.Background(), testProfile(), github.ProjectStructure{}, manifest, longReadme)
	if err != nil {
		t.Fatalf("GenerateUsage: %v", err)
	}
	if !strings.Contains(prompt, "Package JSON scripts: build, start") {
		t.Errorf("prompt missing sorted scripts:\n%s", prompt[:200])
	}
	if strings.Contains(prompt, strings.Repeat("x", 1001)) {
		t.Error("existing README must be truncated to 1000 characters")
	}
	if !strings.Contains(prompt, strings.Repeat("x", 1000)) {
		t.Error("truncated README excerpt missing")
	}
}

func TestProviderFailureIsGenerationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GenerateDescription(context.Background(), testProfile(), github.ProjectStructure{}, config.DefaultSettings())
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.HasCategory(err, apperrors.CategoryGeneration) {
		t.Errorf("category = %v, want generation", apperrors.GetCategory(err))
	}
	if !apperrors.IsRetryable(err) {
		t.Error("provider failures must be retryable")
	}
}

func TestEmptyResponseYieldsEmptyString(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	})
	got, err := client.GenerateContributing(context.Background(), testProfile(), github.ProjectStructure{}, config.DefaultSettings())
	if err != nil {
		t.Fatalf("GenerateContributing: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
