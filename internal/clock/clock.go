package clock

import "time"

// Clock abstracts time for components that throttle or timestamp work.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
