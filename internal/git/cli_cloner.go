package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CLICloner shells out to the git binary.
type CLICloner struct {
	GitPath string
	Depth   int
}

func (c *CLICloner) Clone(ctx context.Context, repoURL, dest string) error {
	gitPath := c.GitPath
	if gitPath == "" {
		gitPath = "git"
	}
	depth := c.Depth
	if depth <= 0 {
		depth = 1
	}

	cmd := exec.CommandContext(ctx, gitPath, "clone", "--quiet", "--depth", fmt.Sprint(depth), repoURL, dest)
	// Never block on a credential prompt for a repository that vanished.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("git clone: %w: %s", err, msg)
		}
		return fmt.Errorf("git clone: %w", err)
	}
	return nil
}
