package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
)

// QueryPreparer is implemented by playbooks whose transfers view needs a
// query submitted before the table renders (date range, page size). It is
// optional; the worker type-asserts for it after navigation.
type QueryPreparer interface {
	PrepareQuery(ctx context.Context, page, frame *rod.Page, now time.Time, lookbackDays int) error
}
