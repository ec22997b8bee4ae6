package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	roomservice "github.com/sharetube/roomsync/internal/service/room"
	"golang.org/x/sync/errgroup"
)

var errPreconditionFailed = errors.New("nothing to keep in sync")

type iEngine interface {
	ForceSync(ctx context.Context)
	EmergencySync(ctx context.Context) bool
}

type iSession interface {
	Snapshot() roomservice.Snapshot
	Changes() (<-chan struct{}, func())
}

type Stats struct {
	Active      bool      `json:"active"`
	Attempts    int       `json:"attempts"`
	Emergencies int       `json:"emergencies"`
	ActiveLoops int       `json:"active_loops"`
	LastSync    time.Time `json:"last_sync"`
}

// Supervisor keeps reconciliation going for clients whose runtime throttles
// or suspends timers while in the background. It runs three loops that start
// and stop together: primary, background (only while hidden) and emergency.
type Supervisor struct {
	cfg      Config
	engine   iEngine
	session  iSession
	wakeLock WakeLock
	logger   *slog.Logger
	now      func() time.Time

	hidden      atomic.Bool
	activeLoops atomic.Int32

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	mu          sync.Mutex
	active      bool
	lastSync    time.Time
	attempts    int
	emergencies int
}

func New(engine iEngine, session iSession, wakeLock WakeLock, cfg Config, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		engine:   engine,
		session:  session,
		wakeLock: wakeLock,
		logger:   logger,
		now:      time.Now,
	}
}

// Run keeps the supervisor active exactly while there is something to play,
// until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	changes, release := s.session.Changes()
	defer release()
	defer s.Stop()

	s.ensure(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			s.ensure(ctx)
		}
	}
}

func (s *Supervisor) ensure(ctx context.Context) {
	switch ready, active := s.ready(), s.Active(); {
	case ready && !active:
		s.Start(ctx)
	case !ready && active:
		s.Stop()
	}
}

// Start (re)starts all loops. An active supervisor is fully torn down first.
// It reports false, leaving the supervisor idle, when nothing is loaded.
func (s *Supervisor) Start(ctx context.Context) bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.stop()

	if !s.ready() {
		s.logger.DebugContext(ctx, "sync supervisor not started, nothing loaded")
		return false
	}

	if err := s.wakeLock.Acquire(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to acquire wake lock", "error", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)
	done := make(chan struct{})

	s.mu.Lock()
	s.active = true
	s.lastSync = time.Time{}
	s.mu.Unlock()
	s.cancel = cancel
	s.done = done

	g.Go(func() error { return s.loop(gctx, "primary", s.cfg.PrimaryInterval, s.primary) })
	g.Go(func() error { return s.loop(gctx, "background", s.cfg.BackgroundInterval, s.background) })
	g.Go(func() error { return s.loop(gctx, "emergency", s.cfg.EmergencyInterval, s.emergency) })

	go func() {
		defer close(done)
		err := g.Wait()
		cancel()

		// The wake lock is released with a fresh context: loopCtx is gone.
		releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer releaseCancel()
		if err := s.wakeLock.Release(releaseCtx); err != nil {
			s.logger.WarnContext(ctx, "failed to release wake lock", "error", err)
		}

		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "sync supervisor stopped", "reason", err)
	}()

	s.logger.InfoContext(ctx, "sync supervisor started")
	return true
}

// Stop tears down all loops and waits for them to exit.
func (s *Supervisor) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.stop()
}

// stop must be called with lifecycleMu held.
func (s *Supervisor) stop() {
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Supervisor) SetHidden(hidden bool) {
	s.hidden.Store(hidden)
}

func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Active:      s.active,
		Attempts:    s.attempts,
		Emergencies: s.emergencies,
		ActiveLoops: int(s.activeLoops.Load()),
		LastSync:    s.lastSync,
	}
}

func (s *Supervisor) ready() bool {
	mode := s.session.Snapshot().ActiveMode()
	return mode != nil && mode.Timeline().MediaID != ""
}

// loop ticks fn until ctx is done or there is nothing left to sync. Ending
// on a failed precondition cancels the sibling loops too.
func (s *Supervisor) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) error {
	s.activeLoops.Add(1)
	defer s.activeLoops.Add(-1)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.ready() {
				s.logger.InfoContext(ctx, "sync loop exiting, nothing loaded", "loop", name)
				return errPreconditionFailed
			}
			fn(ctx)
		}
	}
}

func (s *Supervisor) primary(ctx context.Context) {
	if s.session.Snapshot().IsHost {
		return
	}
	s.forceSync(ctx)
}

func (s *Supervisor) background(ctx context.Context) {
	if !s.hidden.Load() {
		return
	}
	s.logger.DebugContext(ctx, "background sync while hidden")
	s.forceSync(ctx)
}

func (s *Supervisor) emergency(ctx context.Context) {
	if !s.engine.EmergencySync(ctx) {
		return
	}

	s.mu.Lock()
	s.emergencies++
	s.mu.Unlock()
}

func (s *Supervisor) forceSync(ctx context.Context) {
	s.mu.Lock()
	now := s.now()
	if !s.lastSync.IsZero() && now.Sub(s.lastSync) < s.cfg.MinSyncGap {
		s.mu.Unlock()
		return
	}
	s.lastSync = now
	s.attempts++
	attempts := s.attempts
	s.mu.Unlock()

	s.engine.ForceSync(ctx)
	if attempts%10 == 0 {
		s.logger.DebugContext(ctx, "forced syncs", "attempts", attempts)
	}
}
