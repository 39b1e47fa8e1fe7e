// Package generator orchestrates the four-step README generation pipeline:
// metadata fetch, structure analysis, AI content generation and Markdown
// assembly.
package generator

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/readmegen/internal/assemble"
	"git.home.luguber.info/inful/readmegen/internal/config"
	"git.home.luguber.info/inful/readmegen/internal/github"
	"git.home.luguber.info/inful/readmegen/internal/observability"
)

// StepStatus tracks one pipeline step through its lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Step is one entry of the fixed pipeline sequence.
type Step struct {
	Name    string     `json:"step"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

var stepNames = []string{
	"Fetching repository metadata",
	"Analyzing project structure",
	"Generating content with AI",
	"Formatting Markdown output",
}

// ProgressSink receives a snapshot of the step sequence after every
// transition. Implementations must not retain the slice.
type ProgressSink interface {
	Progress(steps []Step)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(steps []Step)

func (f ProgressFunc) Progress(steps []Step) { f(steps) }

// Inspector reads repository metadata and structure. The hosted and local
// inspectors both satisfy it.
type Inspector interface {
	FetchProfile(ctx context.Context, rawURL string) (*github.RepositoryProfile, error)
	AnalyzeStructure(ctx context.Context, owner, repo string) github.ProjectStructure
	FetchManifest(ctx context.Context, owner, repo string) (*github.PackageManifest, error)
	FetchReadme(ctx context.Context, owner, repo string) string
}

// Synthesizer produces section content.
type Synthesizer interface {
	GenerateDescription(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, settings config.GenerationSettings) (string, error)
	GenerateFeatures(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, settings config.GenerationSettings) ([]string, error)
	GenerateInstallation(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, manifest *github.PackageManifest) (string, error)
	GenerateUsage(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, manifest *github.PackageManifest, existingReadme string) (string, error)
	GenerateAPIDocs(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, existingReadme string) (string, error)
	GenerateContributing(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, settings config.GenerationSettings) (string, error)
}

// InspectorFactory yields an inspector bound to a credential. An empty
// token means anonymous access.
type InspectorFactory func(token string) Inspector

// Result is the outcome of a successful run.
type Result struct {
	Markdown string
	Profile  *github.RepositoryProfile
	Steps    []Step
}

// Generator runs the pipeline. It performs no retries; retry decisions
// belong to the caller, guided by the error classification.
type Generator struct {
	inspectorFor InspectorFactory
	synthesizer  Synthesizer
}

// New creates a Generator.
func New(inspectorFor InspectorFactory, synthesizer Synthesizer) *Generator {
	return &Generator{inspectorFor: inspectorFor, synthesizer: synthesizer}
}

// Run executes the pipeline for one repository URL. Steps advance strictly
// in order with exactly one processing at a time; on failure the current
// step is marked failed, later steps stay pending and the error is
// returned. No partial document is ever produced.
func (g *Generator) Run(ctx context.Context, rawURL string, settings config.GenerationSettings, token string, sink ProgressSink) (*Result, error) {
	steps := make([]Step, len(stepNames))
	for i, name := range stepNames {
		steps[i] = Step{Name: name, Status: StepPending}
	}

	update := func(i int, status StepStatus, message string) {
		steps[i].Status = status
		steps[i].Message = message
		if sink != nil {
			sink.Progress(snapshotSteps(steps))
		}
	}

	fail := func(i int, err error) ([]Step, error) {
		update(i, StepFailed, err.Error())
		observability.RecordStepFailure(steps[i].Name)
		return snapshotSteps(steps), err
	}

	observability.RecordGenerationStarted()
	started := time.Now()

	inspector := g.inspectorFor(token)

	update(0, StepProcessing, "")
	profile, err := inspector.FetchProfile(ctx, rawURL)
	if err != nil {
		failedSteps, err := fail(0, err)
		observability.RecordGenerationFinished(time.Since(started).Seconds(), true)
		return &Result{Steps: failedSteps}, err
	}
	ctx = observability.WithRepository(ctx, profile.FullName)
	update(0, StepCompleted, "")

	update(1, StepProcessing, "")
	structure := inspector.AnalyzeStructure(ctx, profile.Owner, profile.Name)
	manifest, _ := inspector.FetchManifest(ctx, profile.Owner, profile.Name)
	existingReadme := inspector.FetchReadme(ctx, profile.Owner, profile.Name)
	update(1, StepCompleted, "")

	update(2, StepProcessing, "")
	sections, err := g.generateSections(ctx, profile, structure, manifest, existingReadme, settings)
	if err != nil {
		failedSteps, err := fail(2, err)
		observability.RecordGenerationFinished(time.Since(started).Seconds(), true)
		return &Result{Steps: failedSteps}, err
	}
	update(2, StepCompleted, "")

	update(3, StepProcessing, "")
	markdown := assemble.Render(profile, structure, sections, settings)
	update(3, StepCompleted, "")

	observability.RecordGenerationFinished(time.Since(started).Seconds(), false)
	observability.InfoContext(ctx, "generation completed")

	return &Result{Markdown: markdown, Profile: profile, Steps: snapshotSteps(steps)}, nil
}

// generateSections fans the requested section calls out concurrently.
// Description and features are always generated; the optional sections run
// only when their flag is set, so a disabled section costs no provider
// call. The first error wins.
func (g *Generator) generateSections(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, manifest *github.PackageManifest, existingReadme string, settings config.GenerationSettings) (assemble.Sections, error) {
	var (
		sections assemble.Sections
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	run := func(f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(); err != nil {
				setErr(err)
			}
		}()
	}

	run(func() error {
		text, err := g.synthesizer.GenerateDescription(ctx, profile, structure, settings)
		sections.Description = text
		return err
	})
	run(func() error {
		features, err := g.synthesizer.GenerateFeatures(ctx, profile, structure, settings)
		sections.Features = features
		return err
	})
	if settings.IncludeSections.Installation {
		run(func() error {
			text, err := g.synthesizer.GenerateInstallation(ctx, profile, structure, manifest)
			sections.Installation = text
			return err
		})
	}
	if settings.IncludeSections.Usage {
		run(func() error {
			text, err := g.synthesizer.GenerateUsage(ctx, profile, structure, manifest, existingReadme)
			sections.Usage = text
			return err
		})
	}
	if settings.IncludeSections.API {
		run(func() error {
			text, err := g.synthesizer.GenerateAPIDocs(ctx, profile, structure, existingReadme)
			sections.APIDocs = text
			return err
		})
	}
	if settings.IncludeSections.Contributing {
		run(func() error {
			text, err := g.synthesizer.GenerateContributing(ctx, profile, structure, settings)
			sections.Contributing = text
			return err
		})
	}

	wg.Wait()

	if firstErr != nil {
		return assemble.Sections{}, firstErr
	}
	return sections, nil
}

func snapshotSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}
