package config

import "git.home.luguber.info/inful/readmegen/internal/normalize"

// ContentStyle selects the tone of the generated prose.
type ContentStyle string

const (
	StyleProfessional ContentStyle = "professional"
	StyleCasual       ContentStyle = "casual"
	StyleTechnical    ContentStyle = "technical"
)

// ContentLength selects how much prose the generators are asked for.
type ContentLength string

const (
	LengthMinimal       ContentLength = "minimal"
	LengthStandard      ContentLength = "standard"
	LengthComprehensive ContentLength = "comprehensive"
)

// SectionFlags selects which optional README sections are generated.
type SectionFlags struct {
	Installation bool `yaml:"installation" json:"installation"`
	Usage        bool `yaml:"usage" json:"usage"`
	Contributing bool `yaml:"contributing" json:"contributing"`
	API          bool `yaml:"api" json:"api"`
}

// BadgeFlags selects which badge categories lead the document.
type BadgeFlags struct {
	Build     bool `yaml:"build" json:"build"`
	Version   bool `yaml:"version" json:"version"`
	Downloads bool `yaml:"downloads" json:"downloads"`
}

// GenerationSettings is the fully-specified, validated configuration for one
// generation run. Internal components only ever receive complete values; the
// pointer-based request shape is collapsed here at the system boundary.
type GenerationSettings struct {
	Style           ContentStyle  `yaml:"style" json:"style"`
	Length          ContentLength `yaml:"length" json:"length"`
	IncludeSections SectionFlags  `yaml:"include_sections" json:"includeSections"`
	IncludeBadges   BadgeFlags    `yaml:"include_badges" json:"includeBadges"`
	Template        string        `yaml:"template" json:"template"`
}

// SettingsPatch is the wire shape of user-supplied settings: every field is
// optional and unrecognized values fall back to the documented defaults.
type SettingsPatch struct {
	Style           *string `json:"style,omitempty" yaml:"style,omitempty"`
	Length          *string `json:"length,omitempty" yaml:"length,omitempty"`
	IncludeSections *struct {
		Installation *bool `json:"installation,omitempty"`
		Usage        *bool `json:"usage,omitempty"`
		Contributing *bool `json:"contributing,omitempty"`
		API          *bool `json:"api,omitempty"`
	} `json:"includeSections,omitempty" yaml:"include_sections,omitempty"`
	IncludeBadges *struct {
		Build     *bool `json:"build,omitempty"`
		Version   *bool `json:"version,omitempty"`
		Downloads *bool `json:"downloads,omitempty"`
	} `json:"includeBadges,omitempty" yaml:"include_badges,omitempty"`
	Template *string `json:"template,omitempty" yaml:"template,omitempty"`
}

var styleNormalizer = normalize.NewNormalizer(map[string]ContentStyle{
	"professional": StyleProfessional,
	"casual":       StyleCasual,
	"technical":    StyleTechnical,
}, StyleProfessional)

var lengthNormalizer = normalize.NewNormalizer(map[string]ContentLength{
	"minimal":       LengthMinimal,
	"standard":      LengthStandard,
	"comprehensive": LengthComprehensive,
}, LengthStandard)

// DefaultSettings returns the documented defaults: professional style,
// standard length, installation/usage/contributing enabled, API disabled,
// build and version badges enabled.
func DefaultSettings() GenerationSettings {
	return GenerationSettings{
		Style:  StyleProfessional,
		Length: LengthStandard,
		IncludeSections: SectionFlags{
			Installation: true,
			Usage:        true,
			Contributing: true,
			API:          false,
		},
		IncludeBadges: BadgeFlags{
			Build:     true,
			Version:   true,
			Downloads: false,
		},
		Template: "standard",
	}
}

// NormalizeSettings produces a complete settings value from a partially
// populated one, falling back to defaults for zero values.
func NormalizeSettings(s *GenerationSettings) GenerationSettings {
	out := DefaultSettings()
	if s == nil {
		return out
	}
	out.Style = styleNormalizer.Normalize(string(s.Style))
	out.Length = lengthNormalizer.Normalize(string(s.Length))
	out.IncludeSections = s.IncludeSections
	out.IncludeBadges = s.IncludeBadges
	if s.Template != "" {
		out.Template = s.Template
	}
	return out
}

// ApplyPatch merges a user-supplied patch over base settings, normalizing
// enum values and ignoring unrecognized input.
func ApplyPatch(base GenerationSettings, patch *SettingsPatch) GenerationSettings {
	out := base
	if patch == nil {
		return out
	}
	if patch.Style != nil {
		out.Style = styleNormalizer.Normalize(*patch.Style)
	}
	if patch.Length != nil {
		out.Length = lengthNormalizer.Normalize(*patch.Length)
	}
	if s := patch.IncludeSections; s != nil {
		if s.Installation != nil {
			out.IncludeSections.Installation = *s.Installation
		}
		if s.Usage != nil {
			out.IncludeSections.Usage = *s.Usage
		}
		if s.Contributing != nil {
			out.IncludeSections.Contributing = *s.Contributing
		}
		if s.API != nil {
			out.IncludeSections.API = *s.API
		}
	}
	if b := patch.IncludeBadges; b != nil {
		if b.Build != nil {
			out.IncludeBadges.Build = *b.Build
		}
		if b.Version != nil {
			out.IncludeBadges.Version = *b.Version
		}
		if b.Downloads != nil {
			out.IncludeBadges.Downloads = *b.Downloads
		}
	}
	if patch.Template != nil && *patch.Template != "" {
		out.Template = *patch.Template
	}
	return out
}
