// Package localrepo inspects a git working copy on disk, applying the same
// structure detection as the hosted inspector. It backs `generate --local`.
package localrepo

import (
	"context"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	gh "git.home.luguber.info/inful/readmegen/internal/github"
)

var readmeCandidates = []string{"README.md", "readme.md", "README.rst", "README.txt", "README"}

// Inspector reads a repository from a local working copy. The path is bound
// at construction; the owner/repo arguments of the interface methods are
// ignored.
type Inspector struct {
	path string
}

// NewInspector creates a local inspector for the given directory.
func NewInspector(path string) *Inspector {
	return &Inspector{path: path}
}

// FetchProfile opens the working copy and synthesizes a minimal profile.
// The owner and full name come from the origin remote when it points at
// GitHub; otherwise the directory name stands in.
func (i *Inspector) FetchProfile(ctx context.Context, rawPath string) (*gh.RepositoryProfile, error) {
	path := i.path
	if path == "" {
		path = rawPath
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.CategoryValidation, "not a git repository").
			UserAction().
			WithContext("path", path).
			Build()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	name := filepath.Base(abs)

	profile := &gh.RepositoryProfile{
		Name:     name,
		FullName: name,
		Private:  true,
	}

	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		if owner, repoName, parseErr := gh.ParseRepositoryURL(remote.Config().URLs[0]); parseErr == nil {
			profile.Owner = owner
			profile.Name = trimGitSuffix(repoName)
			profile.FullName = owner + "/" + profile.Name
		}
	}
	if profile.Owner == "" {
		profile.Owner = name
	}

	return profile, nil
}

// AnalyzeStructure applies the shared detection rules to the HEAD tree's
// top level. Failures degrade to an empty structure.
func (i *Inspector) AnalyzeStructure(ctx context.Context, owner, repo string) gh.ProjectStructure {
	tree, err := i.headTree()
	if err != nil {
		return gh.ProjectStructure{}
	}

	entries := make([]gh.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entryType := "file"
		if entry.Mode == filemode.Dir {
			entryType = "dir"
		}
		entries = append(entries, gh.TreeEntry{Name: entry.Name, Type: entryType})
	}

	manifest, _ := i.FetchManifest(ctx, owner, repo)
	return gh.DetectStructure(entries, manifest)
}

// FetchManifest reads package.json from the HEAD tree; nil when absent or
// unparseable.
func (i *Inspector) FetchManifest(ctx context.Context, owner, repo string) (*gh.PackageManifest, error) {
	content, err := i.fileContents("package.json")
	if err != nil || content == "" {
		return nil, nil
	}
	return gh.ParseManifest(content), nil
}

// FetchReadme returns the first README candidate present in the HEAD tree.
func (i *Inspector) FetchReadme(ctx context.Context, owner, repo string) string {
	for _, name := range readmeCandidates {
		if content, err := i.fileContents(name); err == nil && content != "" {
			return content
		}
	}
	return ""
}

func (i *Inspector) headTree() (*object.Tree, error) {
	repo, err := git.PlainOpen(i.path)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

func (i *Inspector) fileContents(name string) (string, error) {
	tree, err := i.headTree()
	if err != nil {
		return "", err
	}
	file, err := tree.File(name)
	if err != nil {
		return "", err
	}
	return file.Contents()
}

func trimGitSuffix(name string) string {
	if len(name) > 4 && name[len(name)-4:] == ".git" {
		return name[:len(name)-4]
	}
	return name
}
