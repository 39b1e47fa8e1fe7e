// Package assemble renders the final README document from repository
// metadata, structure signals and generated section content. Rendering is
// pure: no I/O, no clock, identical input always yields identical output.
package assemble

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/readmegen/internal/config"
	"git.home.luguber.info/inful/readmegen/internal/gemini"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

// Sections carries the generated content for one document. Empty strings
// mean the section was not requested or the provider produced nothing;
// either way the section is omitted.
type Sections struct {
	Description  string
	Features     []string
	Installation string
	Usage        string
	APIDocs      string
	Contributing string
}

// Render produces the complete Markdown document.
func Render(profile *github.RepositoryProfile, structure github.ProjectStructure, sections Sections, settings config.GenerationSettings) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", profile.Name)

	if settings.IncludeBadges.Build || settings.IncludeBadges.Version || settings.IncludeBadges.Downloads {
		var badges []string
		if settings.IncludeBadges.Build {
			badges = append(badges, fmt.Sprintf("![Build Status](https://img.shields.io/github/actions/workflow/status/%s/ci.yml)", profile.FullName))
		}
		if settings.IncludeBadges.Version {
			badges = append(badges, fmt.Sprintf("![Version](https://img.shields.io/github/v/release/%s)", profile.FullName))
		}
		// The license badge rides on the build flag.
		if profile.License != nil && settings.IncludeBadges.Build {
			badges = append(badges, fmt.Sprintf("![License](https://img.shields.io/badge/license-%s-blue)", profile.License.SPDXID))
		}
		badges = append(badges,
			fmt.Sprintf("![Stars](https://img.shields.io/github/stars/%s)", profile.FullName),
			fmt.Sprintf("![Forks](https://img.shields.io/github/forks/%s)", profile.FullName),
		)
		b.WriteString(strings.Join(badges, " ") + "\n\n")
	}

	fmt.Fprintf(&b, "## Description\n\n%s\n\n", sections.Description)

	if len(sections.Features) > 0 {
		b.WriteString("## Features\n\n")
		for _, feature := range sections.Features {
			fmt.Fprintf(&b, "- %s\n", feature)
		}
		b.WriteString("\n")
	}

	if len(structure.Technologies) > 0 || profile.Language != "" {
		b.WriteString("## Tech Stack\n\n")
		if profile.Language != "" {
			fmt.Fprintf(&b, "**Language:** %s\n\n", profile.Language)
		}
		if structure.Framework != "" {
			fmt.Fprintf(&b, "**Framework:** %s\n\n", structure.Framework)
		}
		if len(structure.Technologies) > 0 {
			fmt.Fprintf(&b, "**Technologies:** %s\n\n", strings.Join(structure.Technologies, ", "))
		}
		if structure.BuildSystem != "" {
			fmt.Fprintf(&b, "**Build System:** %s\n\n", structure.BuildSystem)
		}
	}

	if settings.IncludeSections.Installation && sections.Installation != "" {
		b.WriteString("## Installation\n\n" + sections.Installation + "\n\n")
	}

	if settings.IncludeSections.Usage && sections.Usage != "" {
		b.WriteString("## Usage\n\n" + sections.Usage + "\n\n")
	}

	if settings.IncludeSections.API && sections.APIDocs != "" && sections.APIDocs != gemini.NoAPIDocumentation {
		b.WriteString("## API Documentation\n\n" + sections.APIDocs + "\n\n")
	}

	b.WriteString("## Project Structure\n\n")
	b.WriteString("```\n")
	fmt.Fprintf(&b, "%s/\n", profile.Name)
	b.WriteString("├── src/                 # Source code\n")
	b.WriteString("├── docs/                # Documentation\n")
	if structure.HasTests {
		b.WriteString("├── tests/               # Test files\n")
	}
	if structure.BuildSystem == "npm" {
		b.WriteString("├── package.json         # Project dependencies\n")
	}
	b.WriteString("└── README.md            # Project documentation\n")
	b.WriteString("```\n\n")

	if settings.IncludeSections.Contributing && sections.Contributing != "" {
		b.WriteString("## Contributing\n\n" + sections.Contributing + "\n\n")
	}

	if profile.License != nil {
		fmt.Fprintf(&b, "## License\n\nThis project is licensed under the %s License. See the LICENSE file for details.\n\n", profile.License.Name)
	}

	b.WriteString("## Repository Information\n\n")
	fmt.Fprintf(&b, "- **Repository:** [%s](https://github.com/%s)\n", profile.FullName, profile.FullName)
	fmt.Fprintf(&b, "- **Stars:** %d\n", profile.Stars)
	fmt.Fprintf(&b, "- **Forks:** %d\n", profile.Forks)
	if profile.Homepage != "" {
		fmt.Fprintf(&b, "- **Homepage:** [%s](%s)\n", profile.Homepage, profile.Homepage)
	}
	b.WriteString("\n")

	return b.String()
}
