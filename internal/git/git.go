// Package git manages ephemeral shallow checkouts of candidate
// repositories. Every checkout lives under one root directory and is
// removed once its scan is over.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"secretsweep/internal/logger"
	"secretsweep/models"
)

// Cloner performs a depth-limited clone of repoURL into dest.
type Cloner interface {
	Clone(ctx context.Context, repoURL, dest string) error
}

// WorkingCopy is a checked-out repository. Close removes it; calling
// Close more than once is safe.
type WorkingCopy struct {
	Path    string
	RepoURL string

	once    sync.Once
	release func(*WorkingCopy) error
	err     error
}

func (w *WorkingCopy) Close() error {
	w.once.Do(func() {
		w.err = w.release(w)
	})
	return w.err
}

// Manager hands out working copies below Root and tracks the live ones
// so an interrupted run can still clean up.
type Manager struct {
	Root   string
	cloner Cloner
	log    *zap.SugaredLogger

	mu     sync.Mutex
	active map[string]*WorkingCopy
}

func NewManager(root string, cloner Cloner, log *zap.SugaredLogger) *Manager {
	return &Manager{
		Root:   root,
		cloner: cloner,
		log:    logger.OrDefault(log),
		active: make(map[string]*WorkingCopy),
	}
}

// Prepare wipes leftovers of earlier runs and recreates Root.
func (m *Manager) Prepare() error {
	if err := os.RemoveAll(m.Root); err != nil {
		return fmt.Errorf("remove %s: %w", m.Root, err)
	}
	if err := os.MkdirAll(m.Root, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", m.Root, err)
	}
	return nil
}

// Checkout clones repoURL into Root/<fullName with '/' replaced by '_'>.
// On failure nothing is left on disk and the error wraps
// models.ErrCheckout.
func (m *Manager) Checkout(ctx context.Context, repoURL, fullName string) (*WorkingCopy, error) {
	start := time.Now()
	defer logger.Trace("Checkout", start)

	dest := filepath.Join(m.Root, LocalName(fullName))
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("%w: clean %s: %v", models.ErrCheckout, dest, err)
	}

	if err := m.cloner.Clone(ctx, repoURL, dest); err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCheckout, repoURL, err)
	}

	wc := &WorkingCopy{Path: dest, RepoURL: repoURL, release: m.release}
	m.mu.Lock()
	m.active[dest] = wc
	m.mu.Unlock()
	m.log.Debugf("Repositório clonado em %s", dest)
	return wc, nil
}

func (m *Manager) release(wc *WorkingCopy) error {
	m.mu.Lock()
	delete(m.active, wc.Path)
	m.mu.Unlock()
	if err := os.RemoveAll(wc.Path); err != nil {
		m.log.Warnf("failed to remove working copy %s: %v", wc.Path, err)
		return err
	}
	return nil
}

// Active returns the number of working copies not yet closed.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Cleanup closes every live working copy and removes Root.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	live := make([]*WorkingCopy, 0, len(m.active))
	for _, wc := range m.active {
		live = append(live, wc)
	}
	m.mu.Unlock()

	for _, wc := range live {
		_ = wc.Close()
	}
	return os.RemoveAll(m.Root)
}

// LocalName maps "org/repo" onto a single path element.
func LocalName(fullName string) string {
	name := strings.ReplaceAll(fullName, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = fmt.Sprintf("repo_%d", time.Now().UnixNano())
	}
	return name
}
