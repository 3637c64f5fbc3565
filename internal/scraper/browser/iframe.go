package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

// CollectFrames recursively gathers the page and every visible iframe
// context, nested ones included, in document order.
func CollectFrames(page *rod.Page) []*rod.Page {
	out := []*rod.Page{page}

	iframes, err := page.Elements("iframe")
	if err != nil {
		return out
	}

	for _, iframe := range iframes {
		visible, _ := iframe.Visible()
		if !visible {
			continue
		}
		frame, err := iframe.Frame()
		if err != nil {
			continue
		}
		out = append(out, CollectFrames(frame)...)
	}

	return out
}

// FrameByURL scans all frames (nested included) for one whose URL matches
// pattern, retrying with backoff until timeout. The portals attach their
// app frames late, so a single scan is not enough.
func FrameByURL(ctx context.Context, page *rod.Page, pattern *regexp.Regexp, timeout time.Duration) (*rod.Page, error) {
	deadline := time.Now().Add(timeout)
	wait := 500 * time.Millisecond

	for {
		for _, frame := range CollectFrames(page) {
			info, err := frame.Info()
			if err != nil {
				continue
			}
			if pattern.MatchString(info.URL) {
				return frame, nil
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no frame matching %q within %s", bank.ErrFrameNotFound, pattern, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if wait < 4*time.Second {
			wait *= 2
		}
	}
}

// FrameBySelector returns the frame context of the iframe element matching
// selector, searching the page and its nested frames. Used for portals that
// give their iframes stable ids but opaque URLs.
func FrameBySelector(ctx context.Context, page *rod.Page, selector string, timeout time.Duration) (*rod.Page, error) {
	deadline := time.Now().Add(timeout)

	for {
		for _, candidate := range CollectFrames(page) {
			iframeEl, err := candidate.Timeout(time.Second).Element(selector)
			if err != nil {
				continue
			}
			frame, err := iframeEl.Frame()
			if err != nil {
				continue
			}
			return frame, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no iframe matching %q within %s", bank.ErrFrameNotFound, selector, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// ResolveFrame finds a frame by reference: "#id" or "iframe..." references
// resolve by element selector, anything else is a URL regular expression.
func ResolveFrame(ctx context.Context, page *rod.Page, ref string, timeout time.Duration) (*rod.Page, error) {
	if strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "iframe") {
		return FrameBySelector(ctx, page, ref, timeout)
	}
	re, err := regexp.Compile(ref)
	if err != nil {
		return nil, fmt.Errorf("frame reference %q: %w", ref, err)
	}
	return FrameByURL(ctx, page, re, timeout)
}
