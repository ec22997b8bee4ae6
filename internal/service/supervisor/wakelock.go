package supervisor

import "context"

// WakeLock keeps the client's screen, and with it the client runtime, awake.
type WakeLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

type NoopWakeLock struct{}

func (NoopWakeLock) Acquire(context.Context) error { return nil }
func (NoopWakeLock) Release(context.Context) error { return nil }
