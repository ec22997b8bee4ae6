package wsplayer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/roomsync/internal/service/playback"
	"github.com/sharetube/roomsync/internal/service/supervisor"
)

const (
	TypeLoad             = "PLAYER_LOAD"
	TypePlay             = "PLAYER_PLAY"
	TypePause            = "PLAYER_PAUSE"
	TypeSeek             = "PLAYER_SEEK"
	TypeSetVolume        = "PLAYER_SET_VOLUME"
	TypeStop             = "PLAYER_STOP"
	TypeWakeLockAcquire  = "WAKE_LOCK_ACQUIRE"
	TypeWakeLockRelease  = "WAKE_LOCK_RELEASE"
	eventsBufferCapacity = 32
)

type iSender interface {
	Send(ctx context.Context, messageType string, payload any) error
}

type LoadPayload struct {
	MediaID string `json:"media_id"`
}

type SeekPayload struct {
	Seconds float64 `json:"seconds"`
}

type VolumePayload struct {
	Volume int `json:"volume"`
}

// Telemetry is what the client reports about its player.
type Telemetry struct {
	MediaID     string
	State       playback.PlayerState
	CurrentTime float64
	Duration    float64
}

// Player drives the media player embedded in a remote client. Commands are
// sent over the socket; reads are answered from the latest telemetry,
// extrapolated while playing, and updated optimistically on commands.
type Player struct {
	sender iSender
	logger *slog.Logger
	now    func() time.Time
	events chan playback.Event

	mu        sync.Mutex
	mediaID   string
	state     playback.PlayerState
	position  float64
	duration  float64
	sampledAt time.Time
}

func New(sender iSender, logger *slog.Logger) *Player {
	return &Player{
		sender: sender,
		logger: logger,
		now:    time.Now,
		events: make(chan playback.Event, eventsBufferCapacity),
	}
}

func (p *Player) Events() <-chan playback.Event {
	return p.events
}

func (p *Player) Load(ctx context.Context, mediaID string) error {
	if err := p.send(ctx, TypeLoad, LoadPayload{MediaID: mediaID}); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mediaID = mediaID
	p.state = playback.StateUnstarted
	p.position = 0
	p.duration = 0
	p.sampledAt = p.now()

	return nil
}

func (p *Player) Play(ctx context.Context) error {
	if err := p.send(ctx, TypePlay, nil); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resample()
	if p.state != playback.StatePlaying {
		p.state = playback.StateBuffering
	}

	return nil
}

func (p *Player) Pause(ctx context.Context) error {
	if err := p.send(ctx, TypePause, nil); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resample()
	p.state = playback.StatePaused

	return nil
}

func (p *Player) Seek(ctx context.Context, seconds float64) error {
	if err := p.send(ctx, TypeSeek, SeekPayload{Seconds: seconds}); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
	p.sampledAt = p.now()

	return nil
}

func (p *Player) CurrentTime(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current(), nil
}

func (p *Player) State(context.Context) (playback.PlayerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state, nil
}

func (p *Player) Duration(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.duration, nil
}

func (p *Player) SetVolume(ctx context.Context, volume int) error {
	return p.send(ctx, TypeSetVolume, VolumePayload{Volume: volume})
}

func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.mediaID = ""
	p.state = playback.StateUnstarted
	p.position = 0
	p.duration = 0
	p.mu.Unlock()

	return p.send(ctx, TypeStop, nil)
}

func (p *Player) Acquire(ctx context.Context) error {
	return p.send(ctx, TypeWakeLockAcquire, nil)
}

func (p *Player) Release(ctx context.Context) error {
	return p.send(ctx, TypeWakeLockRelease, nil)
}

// Ready records that the client finished loading mediaID.
func (p *Player) Ready(ctx context.Context, mediaID string) error {
	return p.emit(ctx, playback.Event{Kind: playback.EventReady, MediaID: mediaID})
}

// Update applies client telemetry. Reports about another item than the one
// last loaded are stale and dropped.
func (p *Player) Update(ctx context.Context, t Telemetry) error {
	p.mu.Lock()
	if t.MediaID != "" && t.MediaID != p.mediaID {
		p.mu.Unlock()
		p.logger.DebugContext(ctx, "stale telemetry dropped", "media_id", t.MediaID, "loaded", p.mediaID)
		return nil
	}

	changed := t.State != p.state
	p.state = t.State
	p.position = t.CurrentTime
	p.sampledAt = p.now()
	if t.Duration > 0 {
		p.duration = t.Duration
	}
	p.mu.Unlock()

	if !changed {
		return nil
	}

	return p.emit(ctx, playback.Event{Kind: playback.EventStateChange, MediaID: t.MediaID, State: t.State})
}

// Fail reports a client-side player error for mediaID.
func (p *Player) Fail(ctx context.Context, mediaID string, err error) error {
	return p.emit(ctx, playback.Event{Kind: playback.EventError, MediaID: mediaID, Err: err})
}

func (p *Player) emit(ctx context.Context, ev playback.Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) send(ctx context.Context, messageType string, payload any) error {
	if err := p.sender.Send(ctx, messageType, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}

	return nil
}

// current must be called with mu held.
func (p *Player) current() float64 {
	if p.state != playback.StatePlaying {
		return p.position
	}

	pos := p.position + p.now().Sub(p.sampledAt).Seconds()
	if p.duration > 0 {
		pos = min(pos, p.duration)
	}

	return pos
}

// resample folds the extrapolated position into the sample; must be called
// with mu held.
func (p *Player) resample() {
	p.position = p.current()
	p.sampledAt = p.now()
}

var (
	_ playback.Player     = (*Player)(nil)
	_ supervisor.WakeLock = (*Player)(nil)
)
