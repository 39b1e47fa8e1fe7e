package github

import (
	"sort"
	"strings"
)

var extensionTags = map[string]string{
	"py":   "Python",
	"java": "Java",
	"cpp":  "C++",
	"cc":   "C++",
	"c":    "C",
	"rs":   "Rust",
	"go":   "Go",
	"php":  "PHP",
	"rb":   "Ruby",
}

var dependencyTags = map[string]string{
	"express":     "Express.js",
	"typescript":  "TypeScript",
	"tailwindcss": "Tailwind CSS",
	"jest":        "Jest",
	"eslint":      "ESLint",
	"prettier":    "Prettier",
}

// DetectStructure derives project signals from top-level entries and an
// optional package manifest. It is shared by the hosted and local
// inspectors so both report identical structures for identical trees.
func DetectStructure(entries []TreeEntry, manifest *PackageManifest) ProjectStructure {
	s := ProjectStructure{}
	tech := map[string]bool{}

	var hasPackageJSON, hasYarnLock, hasPom, hasGradle, hasMakefile bool

	for _, entry := range entries {
		name := strings.ToLower(entry.Name)

		// The tests/documentation name heuristics apply to files and
		// directories alike.
		if strings.Contains(name, "test") || strings.Contains(name, "spec") ||
			name == "__tests__" || name == "tests" {
			s.HasTests = true
		}
		if strings.Contains(name, "doc") || name == "docs" || strings.Contains(name, "wiki") {
			s.HasDocumentation = true
		}

		if entry.Type != "file" {
			continue
		}
		switch name {
		case "package.json":
			hasPackageJSON = true
		case "yarn.lock":
			hasYarnLock = true
		case "pom.xml":
			hasPom = true
		case "build.gradle":
			hasGradle = true
		case "makefile":
			hasMakefile = true
		case "dockerfile":
			tech["Docker"] = true
		}
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			if tag, ok := extensionTags[name[idx+1:]]; ok {
				tech[tag] = true
			}
		}
	}

	switch {
	case hasYarnLock:
		s.BuildSystem = "yarn"
	case hasPackageJSON:
		s.BuildSystem = "npm"
	case hasPom:
		s.BuildSystem = "maven"
	case hasGradle:
		s.BuildSystem = "gradle"
	case hasMakefile:
		s.BuildSystem = "make"
	}

	if manifest != nil {
		deps := map[string]bool{}
		for name := range manifest.Dependencies {
			deps[name] = true
		}
		for name := range manifest.DevDependencies {
			deps[name] = true
		}

		// Later matches overwrite the framework; every match still lands
		// in the technology set.
		if deps["react"] {
			s.Framework = "React"
			tech["React"] = true
		}
		if deps["vue"] {
			s.Framework = "Vue.js"
			tech["Vue.js"] = true
		}
		if deps["angular"] || deps["@angular/core"] {
			s.Framework = "Angular"
			tech["Angular"] = true
		}
		if deps["next"] {
			s.Framework = "Next.js"
			tech["Next.js"] = true
		}

		for dep, tag := range dependencyTags {
			if deps[dep] {
				tech[tag] = true
			}
		}
	}

	s.Technologies = make([]string, 0, len(tech))
	for t := range tech {
		s.Technologies = append(s.Technologies, t)
	}
	sort.Strings(s.Technologies)

	return s
}
