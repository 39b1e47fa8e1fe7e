package generator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

type fakeInspector struct {
	profileErr error
}

func (f *fakeInspector) FetchProfile(ctx context.Context, rawURL string) (*github.RepositoryProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &github.RepositoryProfile{
		Owner: "octocat", Name: "hello-world", FullName: "octocat/hello-world",
		Language: "Go", Stars: 1,
	}, nil
}

func (f *fakeInspector) AnalyzeStructure(ctx context.Context, owner, repo string) github.ProjectStructure {
	return github.ProjectStructure{HasTests: true, BuildSystem: "make", Technologies: []string{"Go"}}
}

func (f *fakeInspector) FetchManifest(ctx context.Context, owner, repo string) (*github.PackageManifest, error) {
	return nil, nil
}

func (f *fakeInspector) FetchReadme(ctx context.Context, owner, repo string) string {
	return "# old readme"
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	calls map[string]int
	fail  string // section name to fail
}

func (f *fakeSynthesizer) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	if f.fail == name {
		return apperrors.GenerationError(name + " failed").Build()
	}
	return nil
}

func (f *fakeSynthesizer) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSynthesizer) GenerateDescription(ctx context.Context, p *github.RepositoryProfile, s github.ProjectStructure, st config.GenerationSettings) (string, error) {
	return "description", f.record("description")
}

func (f *fakeSynthesizer) GenerateFeatures(ctx context.Context, p *github.RepositoryProfile, s github.ProjectStructure, st config.GenerationSettings) ([]string, error) {
	return []string{"feature"}, f.record("features")
}

func (f *fakeSynthesizer) GenerateInstallation(ctx context.Context, p *github.RepositoryProfile, s github.ProjectStructure, m *github.PackageManifest) (string, error) {
	return "installation", f.record("installation")
}

func (f *fakeSynthesizer) GenerateUsage(ctx context.Context, p *github.RepositoryProfile, s github.ProjectStructure, m *github.PackageManifest, r string) (string, error) {
	return "usage", f.record("usage")
}

func (f *fakeSynthesizer) GenerateAPIDocs(ctx context.Context, p *github.RepositoryProfile, s github.ProjectStructure, r string) (string, error) {
	return "api docs", f.record("api")
}

func (f *fakeSynthesizer) GenerateContributing(ctx context.Context, p *github.RepositoryProfile, s github.ProjectStructure, st config.GenerationSettings) (string, error) {
	return "contributing", f.record("contributing")
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots [][]Step
}

func (r *recordingSink) Progress(steps []Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, steps)
}

func newTestGenerator(insp *fakeInspector, synth *fakeSynthesizer) *Generator {
	return New(func(token string) Inspector { return insp }, synth)
}

func TestRun_Success(t *testing.T) {
	synth := &fakeSynthesizer{}
	sink := &recordingSink{}
	gen := newTestGenerator(&fakeInspector{}, synth)

	result, err := gen.Run(context.Background(), "https://github.com/octocat/hello-world", config.DefaultSettings(), "", sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(result.Markdown, "# hello-world") {
		t.Errorf("unexpected document start: %q", result.Markdown[:40])
	}
	for _, step := range result.Steps {
		if step.Status != StepCompleted {
			t.Errorf("step %q = %s, want completed", step.Name, step.Status)
		}
	}
	if len(result.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(result.Steps))
	}
	if result.Steps[0].Name != "Fetching repository metadata" || result.Steps[3].Name != "Formatting Markdown output" {
		t.Errorf("unexpected step names: %+v", result.Steps)
	}
}

func TestRun_UnrequestedSectionsNeverInvoked(t *testing.T) {
	synth := &fakeSynthesizer{}
	gen := newTestGenerator(&fakeInspector{}, synth)

	settings := config.DefaultSettings()
	settings.IncludeSections = config.SectionFlags{} // everything off

	if _, err := gen.Run(context.Background(), "https://github.com/octocat/hello-world", settings, "", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if synth.count("description") != 1 || synth.count("features") != 1 {
		t.Error("description and features are always generated")
	}
	for _, name := range []string{"installation", "usage", "api", "contributing"} {
		if synth.count(name) != 0 {
			t.Errorf("section %q invoked despite disabled flag", name)
		}
	}
}

func TestRun_FailureMarksStepAndLeavesLaterPending(t *testing.T) {
	insp := &fakeInspector{profileErr: apperrors.NotFoundError("repository not found").Build()}
	sink := &recordingSink{}
	gen := newTestGenerator(insp, &fakeSynthesizer{})

	result, err := gen.Run(context.Background(), "https://github.com/octocat/gone", config.DefaultSettings(), "", sink)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.HasCategory(err, apperrors.CategoryNotFound) {
		t.Errorf("category = %v", apperrors.GetCategory(err))
	}
	if result.Markdown != "" {
		t.Error("no partial document on failure")
	}
	if result.Steps[0].Status != StepFailed {
		t.Errorf("step 0 = %s, want failed", result.Steps[0].Status)
	}
	if result.Steps[0].Message != "repository not found" && !strings.Contains(result.Steps[0].Message, "repository not found") {
		t.Errorf("step message = %q", result.Steps[0].Message)
	}
	for _, step := range result.Steps[1:] {
		if step.Status != StepPending {
			t.Errorf("step %q = %s, want pending", step.Name, step.Status)
		}
	}
}

func TestRun_SynthesisFailure(t *testing.T) {
	synth := &fakeSynthesizer{fail: "usage"}
	gen := newTestGenerator(&fakeInspector{}, synth)

	result, err := gen.Run(context.Background(), "https://github.com/octocat/hello-world", config.DefaultSettings(), "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Steps[0].Status != StepCompleted || result.Steps[1].Status != StepCompleted {
		t.Error("earlier steps must stay completed")
	}
	if result.Steps[2].Status != StepFailed {
		t.Errorf("AI step = %s, want failed", result.Steps[2].Status)
	}
	if result.Steps[3].Status != StepPending {
		t.Errorf("formatting step = %s, want pending", result.Steps[3].Status)
	}
}

func TestRun_ProgressSnapshots(t *testing.T) {
	sink := &recordingSink{}
	gen := newTestGenerator(&fakeInspector{}, &fakeSynthesizer{})

	if _, err := gen.Run(context.Background(), "https://github.com/octocat/hello-world", config.DefaultSettings(), "", sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// One call per transition: 4 steps, processing + completed each.
	if len(sink.snapshots) != 8 {
		t.Fatalf("expected 8 snapshots, got %d", len(sink.snapshots))
	}

	// Snapshots are copies: mutating one must not affect another.
	sink.snapshots[0][0].Status = "mutated"
	if sink.snapshots[1][0].Status == "mutated" {
		t.Error("sink received shared slices")
	}

	// At most one step processing in every snapshot.
	for i, snap := range sink.snapshots {
		processing := 0
		for _, step := range snap {
			if step.Status == StepProcessing {
				processing++
			}
		}
		if processing > 1 {
			t.Errorf("snapshot %d has %d processing steps", i, processing)
		}
	}
}
