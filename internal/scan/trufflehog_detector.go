package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

const (
	DefaultTrufflehogPath = "trufflehog"
	DefaultTimeout        = 10 * time.Minute

	// Tempo que o processo tem para liberar stdout depois do kill.
	waitDelay = 5 * time.Second
)

// TrufflehogDetector spawns `trufflehog filesystem --only-verified <dir>`.
//
// A non-zero exit is not an error: trufflehog may exit non-zero after
// printing valid findings. When Timeout expires the process is killed and
// whatever it printed so far is returned together with
// models.ErrDetectorTimeout.
type TrufflehogDetector struct {
	Path    string
	Timeout time.Duration
	Log     *zap.SugaredLogger
}

func (d *TrufflehogDetector) Invoke(ctx context.Context, dir string) (string, error) {
	start := time.Now()
	defer logger.Trace("TrufflehogDetector.Invoke", start)
	log := logger.OrDefault(d.Log)

	path := d.Path
	if path == "" {
		path = DefaultTrufflehogPath
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, "filesystem", "--only-verified", dir)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return stdout.String(), nil
	case ctx.Err() != nil:
		return stdout.String(), ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return stdout.String(), fmt.Errorf("%w: %s after %s", models.ErrDetectorTimeout, dir, timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Debugf("trufflehog exited with code %d for %s: %s",
			exitErr.ExitCode(), dir, strings.TrimSpace(stderr.String()))
		return stdout.String(), nil
	}
	return "", fmt.Errorf("%w: %s: %v", models.ErrDetectorInvocation, path, err)
}
