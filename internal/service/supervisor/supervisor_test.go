package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharetube/roomsync/internal/repository/room"
	roomservice "github.com/sharetube/roomsync/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	forced     atomic.Int32
	emergency  atomic.Int32
	emergencyR atomic.Bool
}

func (e *fakeEngine) ForceSync(context.Context) {
	e.forced.Add(1)
}

func (e *fakeEngine) EmergencySync(context.Context) bool {
	e.emergency.Add(1)
	return e.emergencyR.Load()
}

type fakeSession struct {
	mu      sync.Mutex
	state   *room.State
	self    string
	changes chan struct{}
}

func newFakeSession(self string, withTrack bool) *fakeSession {
	s := &fakeSession{
		self:    self,
		changes: make(chan struct{}, 1),
		state: &room.State{
			ID:      "ROOM01",
			HostID:  "host",
			Members: map[string]room.Member{"host": {}, "guest": {}},
		},
	}
	if withTrack {
		s.state.CurrentTrack = &room.Track{ID: "a", VideoID: "vid-a"}
	}
	return s
}

func (s *fakeSession) Snapshot() roomservice.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return roomservice.Snapshot{
		RoomID: s.state.ID,
		State:  s.state,
		Self:   roomservice.Identity{ID: s.self},
		IsHost: s.state.HostID == s.self,
	}
}

func (s *fakeSession) Changes() (<-chan struct{}, func()) {
	return s.changes, func() {}
}

func (s *fakeSession) setTrack(track *room.Track) {
	s.mu.Lock()
	next := s.state.Clone()
	next.CurrentTrack = track
	s.state = next
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

type fakeWakeLock struct {
	acquired atomic.Int32
	released atomic.Int32
}

func (w *fakeWakeLock) Acquire(context.Context) error {
	w.acquired.Add(1)
	return nil
}

func (w *fakeWakeLock) Release(context.Context) error {
	w.released.Add(1)
	return nil
}

func testConfig() Config {
	return Config{
		PrimaryInterval:    5 * time.Millisecond,
		BackgroundInterval: 10 * time.Millisecond,
		EmergencyInterval:  15 * time.Millisecond,
		MinSyncGap:         0,
	}
}

type testSupervisor struct {
	*Supervisor
	engine   *fakeEngine
	session  *fakeSession
	wakeLock *fakeWakeLock
}

func newTestSupervisor(t *testing.T, self string, withTrack bool) *testSupervisor {
	t.Helper()
	engine := &fakeEngine{}
	session := newFakeSession(self, withTrack)
	wakeLock := &fakeWakeLock{}
	s := New(engine, session, wakeLock, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Stop)

	return &testSupervisor{Supervisor: s, engine: engine, session: session, wakeLock: wakeLock}
}

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
)

func TestStartRequiresLoadedMedia(t *testing.T) {
	ts := newTestSupervisor(t, "guest", false)

	assert.False(t, ts.Start(context.Background()))
	assert.False(t, ts.Active())
	assert.Zero(t, ts.wakeLock.acquired.Load())
}

func TestStartAndStop(t *testing.T) {
	ts := newTestSupervisor(t, "guest", true)

	require.True(t, ts.Start(context.Background()))
	assert.True(t, ts.Active())
	assert.EqualValues(t, 1, ts.wakeLock.acquired.Load())

	require.Eventually(t, func() bool {
		return ts.Stats().ActiveLoops == 3 && ts.engine.forced.Load() > 0 && ts.engine.emergency.Load() > 0
	}, waitFor, tick)

	ts.Stop()
	stats := ts.Stats()
	assert.False(t, stats.Active)
	assert.Zero(t, stats.ActiveLoops)
	assert.Positive(t, stats.Attempts)
	assert.EqualValues(t, 1, ts.wakeLock.released.Load())

	forced := ts.engine.forced.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, forced, ts.engine.forced.Load(), "no syncs after stop")

	// Stopping twice is harmless.
	ts.Stop()
	assert.EqualValues(t, 1, ts.wakeLock.released.Load())
}

func TestStartIsIdempotent(t *testing.T) {
	ts := newTestSupervisor(t, "guest", true)
	ctx := context.Background()

	require.True(t, ts.Start(ctx))
	require.True(t, ts.Start(ctx))

	assert.EqualValues(t, 2, ts.wakeLock.acquired.Load())
	assert.EqualValues(t, 1, ts.wakeLock.released.Load(), "first instance torn down before the second")

	require.Eventually(t, func() bool {
		return ts.Stats().ActiveLoops == 3
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, ts.Stats().ActiveLoops)

	ts.Stop()
	assert.EqualValues(t, 2, ts.wakeLock.released.Load())
}

func TestBackgroundLoopOnlyWhileHidden(t *testing.T) {
	// The primary loop skips hosts, which isolates the background loop.
	ts := newTestSupervisor(t, "host", true)

	require.True(t, ts.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, ts.engine.forced.Load())

	ts.SetHidden(true)
	require.Eventually(t, func() bool {
		return ts.engine.forced.Load() > 0
	}, waitFor, tick)
}

func TestMinSyncGap(t *testing.T) {
	ts := newTestSupervisor(t, "guest", true)
	ts.cfg.MinSyncGap = time.Second
	fixed := time.Now()
	ts.now = func() time.Time { return fixed }

	require.True(t, ts.Start(context.Background()))
	time.Sleep(40 * time.Millisecond)

	assert.EqualValues(t, 1, ts.engine.forced.Load())
	assert.Equal(t, 1, ts.Stats().Attempts)
}

func TestEmergenciesCounted(t *testing.T) {
	ts := newTestSupervisor(t, "guest", true)
	ts.engine.emergencyR.Store(true)

	require.True(t, ts.Start(context.Background()))
	require.Eventually(t, func() bool {
		return ts.Stats().Emergencies > 0
	}, waitFor, tick)
}

func TestLoopsEndWhenTrackCleared(t *testing.T) {
	ts := newTestSupervisor(t, "guest", true)

	require.True(t, ts.Start(context.Background()))
	ts.session.setTrack(nil)

	require.Eventually(t, func() bool {
		return !ts.Active() && ts.Stats().ActiveLoops == 0
	}, waitFor, tick)
	assert.EqualValues(t, 1, ts.wakeLock.released.Load())
}

func TestRunFollowsLoadedMedia(t *testing.T) {
	ts := newTestSupervisor(t, "guest", false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ts.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, ts.Active())

	ts.session.setTrack(&room.Track{ID: "a", VideoID: "vid-a"})
	require.Eventually(t, ts.Active, waitFor, tick)

	ts.session.setTrack(nil)
	require.Eventually(t, func() bool { return !ts.Active() }, waitFor, tick)

	ts.session.setTrack(&room.Track{ID: "b", VideoID: "vid-b"})
	require.Eventually(t, ts.Active, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("run did not return")
	}
	assert.False(t, ts.Active())
}

func TestIsMobileUserAgent(t *testing.T) {
	tests := []struct {
		ua       string
		expected bool
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15", true},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36", true},
		{"Opera/9.80 (J2ME/MIDP; Opera Mini/9.80)", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", false},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) Gecko/20100101 Firefox/121.0", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsMobileUserAgent(tt.ua), tt.ua)
	}
}
