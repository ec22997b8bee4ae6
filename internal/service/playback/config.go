package playback

import "time"

type Config struct {
	// RoutineThreshold is the dead zone for ambient drift, in seconds.
	RoutineThreshold float64
	// SeekThreshold applies right after an explicit host seek or a track load.
	SeekThreshold float64
	// EmergencyThreshold is the drift above which the cooldown is ignored.
	EmergencyThreshold float64
	// Cooldown is the minimum gap between routine seek corrections.
	Cooldown time.Duration
	// ReportInterval throttles how often the host writes its position.
	ReportInterval time.Duration
	// TickInterval is how often a Runner reconciles without a room change.
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoutineThreshold:   5,
		SeekThreshold:      1,
		EmergencyThreshold: 10,
		Cooldown:           8 * time.Second,
		ReportInterval:     3 * time.Second,
		TickInterval:       time.Second,
	}
}
