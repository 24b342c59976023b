package progress

import (
	"time"

	"github.com/kk-code-lab/packsync/internal/clock"
)

// Sink receives fractional completion values in [0,1]. A nil Sink is valid
// everywhere and means no reporting.
type Sink func(fraction float64)

// DefaultInterval bounds how often a throttled sink fires (one frame at 60Hz).
const DefaultInterval = 16 * time.Millisecond

// Notify clamps the fraction and forwards it to the sink, if any.
func Notify(sink Sink, fraction float64) {
	if sink == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	sink(fraction)
}

// Throttle wraps a sink so intermediate values are dropped when they arrive
// faster than the interval. Terminal values (0 and 1) always pass through.
func Throttle(sink Sink, clk clock.Clock, interval time.Duration) Sink {
	if sink == nil {
		return nil
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	var last time.Time
	return func(fraction float64) {
		now := clk.Now()
		if fraction > 0 && fraction < 1 && !last.IsZero() && now.Sub(last) < interval {
			return
		}
		last = now
		sink(fraction)
	}
}
