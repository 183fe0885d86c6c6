package dispatch

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// InitRepo initializes a git repository in dir unless one already exists.
func InitRepo(dir string) (*Result, error) {
	path := filepath.Join(dir, ".git")
	_, err := git.PlainInit(dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return &Result{Path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("git init: %w", err)
	}
	return &Result{Path: path, Changed: true}, nil
}

// Branch returns the branch HEAD points at, or "" when dir is not a git
// repository or HEAD is detached.
func Branch(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}
	// HEAD may point at an unborn branch in a fresh repository, so read the
	// symbolic reference instead of resolving it.
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return ""
	}
	if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
		return head.Target().Short()
	}
	return ""
}
