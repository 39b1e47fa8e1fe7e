package assemble

import (
	"strings"
	"testing"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/readmegen/internal/config"
	"git.home.luguber.info/inful/readmegen/internal/gemini"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

func sampleProfile() *github.RepositoryProfile {
	return &github.RepositoryProfile{
		Owner:       "octocat",
		Name:        "hello-world",
		FullName:    "octocat/hello-world",
		Description: "My first repository",
		Language:    "JavaScript",
		License:     &github.License{Name: "MIT", SPDXID: "MIT"},
		Stars:       80,
		Forks:       9,
		Homepage:    "https://example.com",
	}
}

func sampleStructure() github.ProjectStructure {
	return github.ProjectStructure{
		HasTests:     true,
		BuildSystem:  "npm",
		Framework:    "React",
		Technologies: []string{"React", "TypeScript"},
	}
}

func sampleSections() Sections {
	return Sections{
		Description:  "A demo project.",
		Features:     []string{"Fast", "Small"},
		Installation: "npm install",
		Usage:        "npm start",
		Contributing: "Open a PR.",
	}
}

func TestRender_SectionOrder(t *testing.T) {
	md := Render(sampleProfile(), sampleStructure(), sampleSections(), config.DefaultSettings())

	order := []string{
		"# hello-world",
		"![Build Status]",
		"## Description",
		"## Features",
		"## Tech Stack",
		"## Installation",
		"## Usage",
		"## Project Structure",
		"## Contributing",
		"## License",
		"## Repository Information",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(md, marker)
		if idx < 0 {
			t.Fatalf("missing %q in document:\n%s", marker, md)
		}
		if idx < last {
			t.Errorf("%q out of order", marker)
		}
		last = idx
	}
}

func TestRender_Deterministic(t *testing.T) {
	first := Render(sampleProfile(), sampleStructure(), sampleSections(), config.DefaultSettings())
	for i := 0; i < 5; i++ {
		if got := Render(sampleProfile(), sampleStructure(), sampleSections(), config.DefaultSettings()); got != first {
			t.Fatal("render is not deterministic")
		}
	}
}

func TestRender_Badges(t *testing.T) {
	settings := config.DefaultSettings()

	md := Render(sampleProfile(), sampleStructure(), sampleSections(), settings)
	if !strings.Contains(md, "![License](https://img.shields.io/badge/license-MIT-blue)") {
		t.Error("expected license badge with build flag and license present")
	}
	if !strings.Contains(md, "![Stars](https://img.shields.io/github/stars/octocat/hello-world)") {
		t.Error("expected stars badge")
	}

	// License badge disappears with the build flag even though a license exists.
	settings.IncludeBadges.Build = false
	md = Render(sampleProfile(), sampleStructure(), sampleSections(), settings)
	if strings.Contains(md, "![License]") {
		t.Error("license badge must require the build flag")
	}
	if !strings.Contains(md, "![Version]") {
		t.Error("version badge should remain")
	}

	// All flags off: no badge line at all.
	settings.IncludeBadges = config.BadgeFlags{}
	md = Render(sampleProfile(), sampleStructure(), sampleSections(), settings)
	if strings.Contains(md, "img.shields.io") {
		t.Error("expected no badges")
	}
}

func TestRender_OmitsEmptyAndUnrequested(t *testing.T) {
	settings := config.DefaultSettings()
	sections := sampleSections()
	sections.Features = nil
	sections.Usage = ""

	md := Render(sampleProfile(), sampleStructure(), sections, settings)
	if strings.Contains(md, "## Features") {
		t.Error("empty features must omit the section")
	}
	if strings.Contains(md, "## Usage") {
		t.Error("empty usage must omit the section")
	}

	settings.IncludeSections.Contributing = false
	md = Render(sampleProfile(), sampleStructure(), sampleSections(), settings)
	if strings.Contains(md, "## Contributing") {
		t.Error("unrequested contributing must omit the section")
	}
}

func TestRender_APISentinelSuppressed(t *testing.T) {
	settings := config.DefaultSettings()
	settings.IncludeSections.API = true
	sections := sampleSections()
	sections.APIDocs = gemini.NoAPIDocumentation

	md := Render(sampleProfile(), sampleStructure(), sections, settings)
	if strings.Contains(md, "## API Documentation") {
		t.Error("sentinel API docs must be suppressed")
	}

	sections.APIDocs = "POST /widgets creates a widget."
	md = Render(sampleProfile(), sampleStructure(), sections, settings)
	if !strings.Contains(md, "## API Documentation") {
		t.Error("real API docs must render")
	}
}

func TestRender_ProjectTree(t *testing.T) {
	md := Render(sampleProfile(), sampleStructure(), sampleSections(), config.DefaultSettings())
	if !strings.Contains(md, "├── tests/               # Test files") {
		t.Error("expected tests line for hasTests")
	}
	if !strings.Contains(md, "├── package.json         # Project dependencies") {
		t.Error("expected package.json line for npm builds")
	}

	structure := sampleStructure()
	structure.HasTests = false
	structure.BuildSystem = "make"
	md = Render(sampleProfile(), structure, sampleSections(), config.DefaultSettings())
	if strings.Contains(md, "├── tests/") || strings.Contains(md, "package.json") {
		t.Error("conditional tree lines leaked")
	}
}

func TestRender_NoLicense(t *testing.T) {
	profile := sampleProfile()
	profile.License = nil
	md := Render(profile, sampleStructure(), sampleSections(), config.DefaultSettings())
	if strings.Contains(md, "## License") {
		t.Error("license section must require a license")
	}
	if strings.Contains(md, "![License]") {
		t.Error("license badge must require a license")
	}
}

func TestRender_Footer(t *testing.T) {
	md := Render(sampleProfile(), sampleStructure(), sampleSections(), config.DefaultSettings())
	if !strings.Contains(md, "- **Repository:** [octocat/hello-world](https://github.com/octocat/hello-world)") {
		t.Error("missing repository link")
	}
	if !strings.Contains(md, "- **Stars:** 80") || !strings.Contains(md, "- **Forks:** 9") {
		t.Error("missing counters")
	}
	if !strings.Contains(md, "- **Homepage:** [https://example.com](https://example.com)") {
		t.Error("missing homepage")
	}

	profile := sampleProfile()
	profile.Homepage = ""
	md = Render(profile, sampleStructure(), sampleSections(), config.DefaultSettings())
	if strings.Contains(md, "**Homepage:**") {
		t.Error("homepage line must be conditional")
	}
}

func TestRender_IsValidMarkdown(t *testing.T) {
	md := Render(sampleProfile(), sampleStructure(), sampleSections(), config.DefaultSettings())
	var html strings.Builder
	if err := goldmark.Convert([]byte(md), &html); err != nil {
		t.Fatalf("document does not parse as Markdown: %v", err)
	}
	if !strings.Contains(html.String(), "<h1") {
		t.Error("expected rendered title heading")
	}
}
