package util

import (
	"context"
	"time"
)

// Woke is a utility to help know when a process was suspended for some amount
// of time. The keyboard controller forgets its zone colors across a suspend,
// so the daemon uses this to force a repaint after resume.
type Woke struct {
	delay   time.Duration
	diffMin time.Duration
	onWake  WokeFunc
}

// WokeFunc is the callback invoked when a time lapse is detected.
type WokeFunc func(diff time.Duration)

// StartWokeWatch begins watching for conditions indicating when a time lapse
// has occurred. It will invoke onWake when the time difference detected is
// larger than diffMin, checking for lapses once every delay. The watch ends
// when ctx is canceled.
func StartWokeWatch(ctx context.Context, delay time.Duration, diffMin time.Duration, onWake WokeFunc) *Woke {
	w := &Woke{
		delay:   delay,
		diffMin: diffMin,
		onWake:  onWake,
	}

	go w.start(ctx)

	return w
}

//--------------------------------------------------------------------------------
// private

func (w *Woke) start(ctx context.Context) {
	defer LogRecover()

	for {
		timer := time.NewTimer(w.delay)
		// Round(0) strips the monotonic reading: suspended time only shows up on the wall clock
		start := time.Now().Round(0)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			elapsed := time.Now().Round(0).Sub(start)
			diff := elapsed - w.delay
			if diff > w.diffMin {
				w.onWake(diff)
			}
		}
	}
}
