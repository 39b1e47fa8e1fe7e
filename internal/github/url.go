package github

import (
	"regexp"

	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
)

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)(?:/|$)`)

// ParseRepositoryURL extracts the owner and repository name from a GitHub
// URL. It rejects anything that does not reference a github.com repository
// without touching the network.
func ParseRepositoryURL(rawURL string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", apperrors.InvalidURLError("invalid GitHub repository URL").
			WithContext("url", rawURL).
			Build()
	}
	return m[1], m[2], nil
}
