package models

import "errors"

// Error taxonomy shared by the pipeline. Components wrap these with
// context; callers classify with errors.Is.
var (
	ErrTransientNetwork   = errors.New("transient network error")
	ErrCheckout           = errors.New("checkout failed")
	ErrDetectorInvocation = errors.New("detector invocation failed")
	ErrDetectorTimeout    = errors.New("detector timed out")
	ErrCacheCorrupt       = errors.New("scan cache unreadable")
	ErrInterrupted        = errors.New("run interrupted")
	ErrUnclassified       = errors.New("run aborted")
)
