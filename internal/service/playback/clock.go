package playback

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock reads the monotonic system clock.
var SystemClock Clock = systemClock{}
