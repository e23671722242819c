package git

import (
	"context"
	"fmt"

	git "github.com/go-git/go-git/v5"
	httpAuth "github.com/go-git/go-git/v5/plumbing/transport/http"

	"secretsweep/internal/vault"
)

// GoGitCloner clones in-process with go-git, for hosts without a git
// binary.
type GoGitCloner struct {
	Vault vault.VaultClient
	Depth int
}

func (c *GoGitCloner) Clone(ctx context.Context, repoURL, dest string) error {
	depth := c.Depth
	if depth <= 0 {
		depth = 1
	}
	opts := &git.CloneOptions{
		URL:          repoURL,
		Depth:        depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}

	if c.Vault != nil {
		creds, err := c.Vault.GetGitHubCredentials()
		if err != nil {
			return fmt.Errorf("erro ao recuperar credenciais do GitHub: %w", err)
		}
		if !creds.Anonymous() {
			opts.Auth = &httpAuth.BasicAuth{
				Username: creds.Username,
				Password: creds.Token,
			}
		}
	}

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("go-git clone falhou: %w", err)
	}
	return nil
}
