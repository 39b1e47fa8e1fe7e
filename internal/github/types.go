// Package github inspects hosted repositories through the GitHub REST API:
// profile metadata, top-level structure and the signals derived from them.
package github

// License identifies a repository license.
type License struct {
	Name   string `json:"name"`
	SPDXID string `json:"spdxId"`
}

// RepositoryProfile is an immutable snapshot of repository metadata taken at
// the start of a generation run.
type RepositoryProfile struct {
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	FullName    string   `json:"fullName"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	License     *License `json:"license,omitempty"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	Homepage    string   `json:"homepage"`
	Private     bool     `json:"private"`
}

// ProjectStructure summarizes what the top level of a repository reveals
// about how the project is built and organized.
type ProjectStructure struct {
	HasTests         bool     `json:"hasTests"`
	HasDocumentation bool     `json:"hasDocumentation"`
	BuildSystem      string   `json:"buildSystem"`
	Framework        string   `json:"framework"`
	Technologies     []string `json:"technologies"`
}

// PackageManifest is the subset of package.json the analyzer and the prompt
// builders care about.
type PackageManifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// TreeEntry is one top-level item of a repository tree.
type TreeEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
}
