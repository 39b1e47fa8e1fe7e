package localrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/octocat/hello-world.git"},
	})
	if err != nil {
		t.Fatalf("remote: %v", err)
	}

	return dir
}

func TestFetchProfile_FromRemote(t *testing.T) {
	dir := initRepo(t, map[string]string{"main.go": "package main\n"})
	inspector := NewInspector(dir)

	profile, err := inspector.FetchProfile(context.Background(), dir)
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.Owner != "octocat" || profile.Name != "hello-world" {
		t.Errorf("identity = %s/%s", profile.Owner, profile.Name)
	}
	if profile.FullName != "octocat/hello-world" {
		t.Errorf("FullName = %q", profile.FullName)
	}
}

func TestFetchProfile_NotARepo(t *testing.T) {
	inspector := NewInspector(t.TempDir())
	if _, err := inspector.FetchProfile(context.Background(), ""); err == nil {
		t.Fatal("expected error for plain directory")
	}
}

func TestAnalyzeStructure(t *testing.T) {
	dir := initRepo(t, map[string]string{
		"package.json":  `{"dependencies":{"react":"^18.0.0"}}`,
		"main.py":       "print('hi')\n",
		"tests/test.py": "pass\n",
		"docs/index.md": "# docs\n",
		"Dockerfile":    "FROM scratch\n",
	})
	inspector := NewInspector(dir)

	s := inspector.AnalyzeStructure(context.Background(), "", "")
	if s.BuildSystem != "npm" {
		t.Errorf("BuildSystem = %q", s.BuildSystem)
	}
	if !s.HasTests || !s.HasDocumentation {
		t.Errorf("tests/docs = %v/%v", s.HasTests, s.HasDocumentation)
	}
	if s.Framework != "React" {
		t.Errorf("Framework = %q", s.Framework)
	}
}

func TestFetchReadme(t *testing.T) {
	dir := initRepo(t, map[string]string{
		"README.rst": "rst readme",
		"README":     "plain readme",
	})
	inspector := NewInspector(dir)

	if got := inspector.FetchReadme(context.Background(), "", ""); got != "rst readme" {
		t.Errorf("readme = %q, want the earlier candidate", got)
	}
}
