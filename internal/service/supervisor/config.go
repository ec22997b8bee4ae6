package supervisor

import "time"

type Config struct {
	PrimaryInterval    time.Duration
	BackgroundInterval time.Duration
	EmergencyInterval  time.Duration
	// MinSyncGap is the shortest time between two forced syncs issued by the
	// primary and background loops combined.
	MinSyncGap time.Duration
}

func DefaultConfig() Config {
	return Config{
		PrimaryInterval:    2 * time.Second,
		BackgroundInterval: 5 * time.Second,
		EmergencyInterval:  10 * time.Second,
		MinSyncGap:         time.Second,
	}
}
