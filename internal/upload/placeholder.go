package upload

import (
	"context"
	"fmt"
	"time"
)

// PlaceholderMessage accompanies every placeholder URL.
const PlaceholderMessage = "Using mock URL - configure object storage for real uploads"

const placeholderURLFormat = "https://via.placeholder.com/400x300/000000/FFFFFF?text=Image+%d"

// PlaceholderBackend returns a stock image URL derived from the current time
// instead of storing anything.
type PlaceholderBackend struct {
	now func() time.Time
}

// NewPlaceholderBackend creates a placeholder backend using the wall clock.
func NewPlaceholderBackend() *PlaceholderBackend {
	return &PlaceholderBackend{now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (b *PlaceholderBackend) SetClock(now func() time.Time) {
	b.now = now
}

// PlaceholderURL returns the placeholder URL for t.
func PlaceholderURL(t time.Time) string {
	return fmt.Sprintf(placeholderURLFormat, t.UnixMilli())
}

func (b *PlaceholderBackend) Store(_ context.Context, _ Object) (Result, error) {
	return Result{URL: PlaceholderURL(b.now()), Message: PlaceholderMessage}, nil
}

func (b *PlaceholderBackend) Name() string { return "placeholder" }
