package bank

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunch means the browser engine could not start. Fatal for the
	// current run, retryable on the next cycle.
	ErrLaunch = errors.New("browser engine failed to start")

	// ErrFrameNotFound and ErrInteractionFailed cover UI drift and
	// transient loads; both are retryable with backoff.
	ErrFrameNotFound     = errors.New("target frame not found")
	ErrInteractionFailed = errors.New("page interaction failed")

	// ErrSecurityBlocked is a site-level lockout. It demands an extended
	// cool-down, never an immediate retry.
	ErrSecurityBlocked = errors.New("security lockout detected")

	// ErrUnparseableRow means the identifying operation id could not be
	// recovered; the row is dropped, the page continues.
	ErrUnparseableRow = errors.New("row missing operation id")

	// ErrExport is a downstream sink failure. Logged only; already
	// normalized records are not rolled back.
	ErrExport = errors.New("export sink failed")
)

// ScraperError provides detailed error context
type ScraperError struct {
	Site      SiteCode
	Operation string
	Cause     error
	Details   string
}

func (e *ScraperError) Error() string {
	return fmt.Sprintf("[%s] %s failed: %v - %s", e.Site, e.Operation, e.Cause, e.Details)
}

func (e *ScraperError) Unwrap() error {
	return e.Cause
}
