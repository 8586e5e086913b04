package utils

import (
	"context"
	"time"
)

// NewTicker returns a channel receiving the current time every d until ctx is done.
// The underlying ticker is stopped when ctx is cancelled; the channel is never closed.
func NewTicker(ctx context.Context, d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				select {
				case ch <- now:
				default:
					// the reader is busy, drop the tick
				}
			}
		}
	}()
	return ch
}
