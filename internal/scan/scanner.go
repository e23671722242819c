// Package scan runs the external verified-secret detector against a
// working copy and turns its textual report into matches.
package scan

import "context"

// Detector runs a secret detector against a local directory and returns
// its raw standard output.
type Detector interface {
	Invoke(ctx context.Context, dir string) (string, error)
}
