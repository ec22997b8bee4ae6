package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sharetube/roomsync/internal/repository/room"
	roomservice "github.com/sharetube/roomsync/internal/service/room"
)

type fakePlayer struct {
	mu       sync.Mutex
	time     float64
	state    PlayerState
	duration float64
	calls    []string

	playErr error
	loadErr error
	timeErr error
}

func (p *fakePlayer) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePlayer) Load(_ context.Context, mediaID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("load:%s", mediaID)
	if p.loadErr != nil {
		return p.loadErr
	}
	p.time = 0
	p.state = StateUnstarted
	return nil
}

func (p *fakePlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("play")
	if p.playErr != nil {
		return p.playErr
	}
	p.state = StatePlaying
	return nil
}

func (p *fakePlayer) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("pause")
	p.state = StatePaused
	return nil
}

func (p *fakePlayer) Seek(_ context.Context, seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("seek:%g", seconds)
	p.time = seconds
	return nil
}

func (p *fakePlayer) CurrentTime(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time, p.timeErr
}

func (p *fakePlayer) State(context.Context) (PlayerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, nil
}

func (p *fakePlayer) Duration(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, nil
}

func (p *fakePlayer) SetVolume(_ context.Context, volume int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("volume:%d", volume)
	return nil
}

func (p *fakePlayer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("stop")
	p.state = StateUnstarted
	return nil
}

func (p *fakePlayer) set(seconds float64, state PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.time = seconds
	p.state = state
}

func (p *fakePlayer) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// commands returns the recorded calls starting with prefix.
func (p *fakePlayer) commands(prefix string) []string {
	var out []string
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (p *fakePlayer) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

type fakeSession struct {
	mu       sync.Mutex
	self     string
	state    *room.State
	reports  []float64
	advances int
}

func (s *fakeSession) Snapshot() roomservice.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := roomservice.Snapshot{Self: roomservice.Identity{ID: s.self}}
	if s.state != nil {
		snap.RoomID = s.state.ID
		snap.State = s.state.Clone()
		snap.IsHost = s.state.HostID == s.self
	}
	return snap
}

func (s *fakeSession) ReportTime(_ context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, seconds)
	return nil
}

func (s *fakeSession) Advance(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advances++
	return nil
}

// update mutates the room state the way a store write would.
func (s *fakeSession) update(fn func(*room.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.Clone()
	fn(next)
	next.UpdatedAt++
	s.state = next
}

func (s *fakeSession) Reports() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.reports...)
}

func (s *fakeSession) Advances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advances
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRoomState(videoID string, currentTime float64, playing bool) *room.State {
	return &room.State{
		ID:     "ROOM01",
		HostID: "host",
		Members: map[string]room.Member{
			"host":  {DisplayName: "Alice", JoinedAt: 1},
			"guest": {DisplayName: "Bob", JoinedAt: 2},
		},
		CurrentTrack: &room.Track{ID: videoID, VideoID: videoID},
		IsPlaying:    playing,
		CurrentTime:  currentTime,
		UpdatedAt:    1,
		Volume:       room.DefaultVolume,
		MovieState:   room.DefaultMovieState(),
	}
}

type testEngine struct {
	*Engine
	player  *fakePlayer
	session *fakeSession
	clock   *fakeClock
}

func newTestEngine(self string, state *room.State) *testEngine {
	player := &fakePlayer{}
	session := &fakeSession{self: self, state: state}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEngine{
		Engine:  NewEngine(player, session, clock, DefaultConfig(), logger),
		player:  player,
		session: session,
		clock:   clock,
	}
}

// loadAndReady runs the first pass, completes the load with the player at
// position seconds in state, and clears the recorded calls.
func (te *testEngine) loadAndReady(ctx context.Context, seconds float64, state PlayerState) {
	te.Reconcile(ctx)
	mediaID := te.session.Snapshot().ActiveMode().Timeline().MediaID
	te.player.set(seconds, state)
	te.HandleEvent(ctx, Event{Kind: EventReady, MediaID: mediaID})
	te.player.set(seconds, state)
	te.player.clear()
}
