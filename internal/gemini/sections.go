package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/readmegen/internal/config"
	"git.home.luguber.info/inful/readmegen/internal/github"
)

// NoAPIDocumentation is returned without a provider call when a repository
// offers nothing to document an API from.
const NoAPIDocumentation = "API documentation not available or not applicable for this project."

const featuresSystemPrompt = `You are an expert technical writer. Generate a list of key features for a software project.
Respond with a JSON array of strings, each representing a feature.
Make features specific, technical, and valuable to users.
Limit to 5-8 key features.`

const maxFeatures = 8

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// GenerateDescription produces the project description section.
func (c *Client) GenerateDescription(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, settings config.GenerationSettings) (string, error) {
	desc := profile.Description
	if desc == "" {
		desc = "No description provided"
	}
	lang := profile.Language
	if lang == "" {
		lang = "Not specified"
	}

	prompt := fmt.Sprintf(`Generate a %s description for a GitHub repository with the following details:

Repository: %s
Current Description: %s
Language: %s
Topics: %s
Technologies: %s
Framework: %s

Style: %s
Length: %s

Please create a clear, engaging description that explains what this project does, its main purpose, and key benefits. Make it professional and informative.`,
		settings.Style, profile.Name, desc, lang,
		joinOrNone(profile.Topics), joinOrNone(structure.Technologies),
		orNone(structure.Framework), settings.Style, settings.Length)

	return c.generateText(ctx, c.textModel, "", prompt, nil)
}

// GenerateFeatures produces the feature list. The structured call against
// the pro model is tried first; on any failure it falls back to free-text
// generation and bullet parsing, capped at eight features.
func (c *Client) GenerateFeatures(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, settings config.GenerationSettings) ([]string, error) {
	desc := profile.Description
	if desc == "" {
		desc = "No description"
	}
	lang := profile.Language
	if lang == "" {
		lang = "Not specified"
	}

	prompt := fmt.Sprintf(`Generate key features for this repository:

Repository: %s
Description: %s
Language: %s
Technologies: %s
Framework: %s
Has Tests: %t
Has Documentation: %t

Style: %s`,
		profile.Name, desc, lang,
		joinOrNone(structure.Technologies), orNone(structure.Framework),
		structure.HasTests, structure.HasDocumentation, settings.Style)

	raw, err := c.generateText(ctx, c.structuredModel, featuresSystemPrompt, prompt, &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   stringArraySchema,
	})
	if err == nil && raw != "" {
		var features []string
		if jsonErr := json.Unmarshal([]byte(raw), &features); jsonErr == nil {
			return features, nil
		}
	}

	fallbackPrompt := prompt + "\n\nReturn as a simple list with each feature on a new line, starting with \"- \""
	text, err := c.generateText(ctx, c.textModel, "", fallbackPrompt, nil)
	if err != nil {
		return nil, err
	}

	var features []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") {
			continue
		}
		features = append(features, strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")))
		if len(features) == maxFeatures {
			break
		}
	}
	return features, nil
}

// GenerateInstallation produces step-by-step installation instructions.
func (c *Client) GenerateInstallation(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, manifest *github.PackageManifest) (string, error) {
	prompt := fmt.Sprintf(`Generate installation instructions for this repository:

Repository: %s
Language: %s
Build System: %s
Framework: %s
Technologies: %s
Package JSON exists: %t

Generate clear, step-by-step installation instructions. Include:
1. Prerequisites (if any)
2. Clone command
3. Install dependencies command
4. Any setup/configuration steps
5. How to run the project

Make instructions beginner-friendly but concise.`,
		profile.Name, profile.Language, structure.BuildSystem,
		structure.Framework, strings.Join(structure.Technologies, ", "),
		manifest != nil)

	return c.generateText(ctx, c.textModel, "", prompt, nil)
}

// GenerateUsage produces usage examples, seeding the prompt with manifest
// scripts and the leading portion of any existing README.
func (c *Client) GenerateUsage(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, manifest *github.PackageManifest, existingReadme string) (string, error) {
	desc := profile.Description
	if desc == "" {
		desc = "No description"
	}

	scripts := "None"
	if manifest != nil && len(manifest.Scripts) > 0 {
		names := make([]string, 0, len(manifest.Scripts))
		for name := range manifest.Scripts {
			names = append(names, name)
		}
		sort.Strings(names)
		scripts = strings.Join(names, ", ")
	}

	readmeExcerpt := "None"
	if existingReadme != "" {
		readmeExcerpt = truncate(existingReadme, 1000)
	}

	prompt := fmt.Sprintf(`Generate usage examples for this repository:

Repository: %s
Description: %s
Language: %s
Framework: %s
Technologies: %s
Package JSON scripts: %s
Existing README content (for reference): %s

Generate practical usage examples including:
1. Basic usage/getting started
2. Code examples (if it's a library/framework)
3. Available commands/scripts
4. Configuration options (if applicable)

Make examples clear and immediately actionable.`,
		profile.Name, desc, profile.Language, structure.Framework,
		strings.Join(structure.Technologies, ", "), scripts, readmeExcerpt)

	return c.generateText(ctx, c.textModel, "", prompt, nil)
}

// GenerateAPIDocs produces API documentation, short-circuiting to the
// sentinel when there is neither an existing README nor any detected
// technology to work from.
func (c *Client) GenerateAPIDocs(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, existingReadme string) (string, error) {
	if existingReadme == "" || len(structure.Technologies) == 0 {
		return NoAPIDocumentation, nil
	}

	prompt := fmt.Sprintf(`Generate API documentation section for this repository:

Repository: %s
Technologies: %s
Framework: %s
Existing README (for reference): %s

If this is a library, API, or framework, generate:
1. Main API endpoints or methods
2. Parameters and return values
3. Example requests/responses
4. Authentication (if applicable)

If not an API project, generate relevant interface documentation instead.`,
		profile.Name, strings.Join(structure.Technologies, ", "),
		structure.Framework, truncate(existingReadme, 2000))

	return c.generateText(ctx, c.textModel, "", prompt, nil)
}

// GenerateContributing produces contributing guidelines.
func (c *Client) GenerateContributing(ctx context.Context, profile *github.RepositoryProfile, structure github.ProjectStructure, settings config.GenerationSettings) (string, error) {
	prompt := fmt.Sprintf(`Generate contributing guidelines for this repository:

Repository: %s
Language: %s
Has Tests: %t
Technologies: %s
Build System: %s
Style: %s

Generate contributing guidelines that include:
1. How to report issues
2. How to submit pull requests
3. Development setup
4. Coding standards
5. Testing requirements (if tests exist)
6. Review process

Keep it welcoming but clear about expectations.`,
		profile.Name, profile.Language, structure.HasTests,
		strings.Join(structure.Technologies, ", "), structure.BuildSystem,
		settings.Style)

	return c.generateText(ctx, c.textModel, "", prompt, nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
