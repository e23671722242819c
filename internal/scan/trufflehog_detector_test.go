package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secretsweep/models"
)

func fakeTrufflehog(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	path := filepath.Join(t.TempDir(), "trufflehog")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestTrufflehogDetector_PassesVerifiedOnlyArgs(t *testing.T) {
	bin := fakeTrufflehog(t, `echo "$1 $2 $3"`+"\n")
	d := &TrufflehogDetector{Path: bin, Timeout: 5 * time.Second, Log: zaptest.NewLogger(t).Sugar()}

	out, err := d.Invoke(context.Background(), "/tmp/repo")
	require.NoError(t, err)
	assert.Equal(t, "filesystem --only-verified /tmp/repo\n", out)
}

func TestTrufflehogDetector_NonZeroExitKeepsOutput(t *testing.T) {
	bin := fakeTrufflehog(t, "echo 'Detector Type: AWS'\necho 'Raw result: K'\nexit 183\n")
	d := &TrufflehogDetector{Path: bin, Timeout: 5 * time.Second}

	out, err := d.Invoke(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Len(t, ParseAll(out), 1)
}

func TestTrufflehogDetector_MissingBinary(t *testing.T) {
	d := &TrufflehogDetector{Path: filepath.Join(t.TempDir(), "nope")}

	out, err := d.Invoke(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, models.ErrDetectorInvocation)
	assert.Empty(t, out)
}

func TestTrufflehogDetector_TimeoutKillsAndKeepsPartialOutput(t *testing.T) {
	bin := fakeTrufflehog(t, "echo 'Detector Type: AWS'\necho 'Raw result: PARTIAL'\nexec sleep 30\n")
	d := &TrufflehogDetector{Path: bin, Timeout: 300 * time.Millisecond}

	start := time.Now()
	out, err := d.Invoke(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, models.ErrDetectorTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)

	got := ParseAll(out)
	require.Len(t, got, 1)
	assert.Equal(t, "PARTIAL", got[0].Raw)
}

func TestTrufflehogDetector_ParentCancellation(t *testing.T) {
	bin := fakeTrufflehog(t, "exec sleep 30\n")
	d := &TrufflehogDetector{Path: bin, Timeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := d.Invoke(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, models.ErrDetectorTimeout)
}
