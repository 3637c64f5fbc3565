package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

// Find locates an element by CSS selector or, when the selector starts
// with "/" or "(", by XPath. The portals' menus are only addressable by
// XPath, so both forms appear in playbooks.
func Find(frame *rod.Page, selector string, timeout time.Duration) (*rod.Element, error) {
	scoped := frame.Timeout(timeout)
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return scoped.ElementX(selector)
	}
	return scoped.Element(selector)
}

// ClickWithRetry hovers then clicks selector inside frame, retrying up to
// maxAttempts. If the frame detaches between attempts it is re-resolved on
// the root page via frameRef (empty means the frame is the page itself and
// is reused as-is). Returns the frame actually clicked in, so callers keep
// a live handle.
func ClickWithRetry(ctx context.Context, page, frame *rod.Page, selector string, frameRef string, maxAttempts int) (*rod.Page, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return frame, err
		}

		el, err := Find(frame, selector, 7*time.Second)
		if err != nil {
			lastErr = err
			if frameRef != "" {
				// The frame may have been detached by a portal
				// re-render; get a fresh handle before retrying.
				if fresh, ferr := ResolveFrame(ctx, page, frameRef, 5*time.Second); ferr == nil {
					frame = fresh
				}
			}
			sleepCtx(ctx, time.Second)
			continue
		}

		_ = el.Hover()
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			lastErr = err
			sleepCtx(ctx, time.Second)
			continue
		}
		return frame, nil
	}

	return frame, fmt.Errorf("%w: click %q after %d attempts: %v", bank.ErrInteractionFailed, selector, maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
