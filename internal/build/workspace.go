package build

import (
	"context"
	"os"

	git "github.com/go-git/go-git/v5"
)

// cloneScaffold checks out the agent scaffold template into a fresh
// temporary directory. Depth-1: the build only needs the tip of the
// default branch, never history.
func cloneScaffold(ctx context.Context, repoURL string) (string, error) {
	dir, err := os.MkdirTemp("", "agentify-scaffold-*")
	if err != nil {
		return "", err
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
