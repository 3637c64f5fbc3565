package browser

import (
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

// TypeHuman types text into an element with human-like timing.
// It uses Element.Type() which properly triggers keyboard events (keydown/keyup).
// Random delays between keystrokes, bounded by [min, max), simulate human
// typing; the portals' bot heuristics flag instantaneous field fills.
func TypeHuman(el *rod.Element, text string, min, max time.Duration) error {
	if max <= min {
		max = min + time.Millisecond
	}
	for _, char := range text {
		if err := el.Type(input.Key(char)); err != nil {
			return err
		}
		time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
	}
	return nil
}
