package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sharetube/roomsync/internal/repository/room"
	roomservice "github.com/sharetube/roomsync/internal/service/room"
)

type iSession interface {
	Snapshot() roomservice.Snapshot
	ReportTime(ctx context.Context, seconds float64) error
	Advance(ctx context.Context) error
}

// anchor identifies one authoritative position write. Extrapolation measures
// local time elapsed since the anchor was first seen.
type anchor struct {
	mediaID     string
	currentTime float64
	updatedAt   int64
	isPlaying   bool
}

// Engine keeps one player in line with the room it belongs to. Every pass
// re-reads the session snapshot, so role changes take effect on the next
// pass without any notification.
type Engine struct {
	cfg     Config
	player  Player
	session iSession
	clock   Clock
	logger  *slog.Logger

	mu sync.Mutex
	// loadedID is the media the player reported ready for; pendingID is
	// being loaded and gates every other command.
	loadedID  string
	pendingID string
	failedID  string
	deferred  bool
	freshLoad bool

	roleKnown      bool
	wasHost        bool
	lastSeekSeq    int64
	lastCorrection time.Time
	lastReport     time.Time
	volume         int
	advancedFor    string

	anchor   anchor
	anchorAt time.Time
}

func NewEngine(player Player, session iSession, clock Clock, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		player:  player,
		session: session,
		clock:   clock,
		logger:  logger,
		volume:  -1,
	}
}

// Reconcile runs one pass for whatever role the session currently has.
func (e *Engine) Reconcile(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reconcile(ctx, e.session.Snapshot())
}

// ForceSync runs a pass for non-hosts only. It is the correction primitive of
// the background loops.
func (e *Engine) ForceSync(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.session.Snapshot()
	if snap.IsHost {
		e.logger.DebugContext(ctx, "force sync skipped, session is host")
		return
	}

	e.reconcile(ctx, snap)
}

// EmergencySync seeks a non-host player that drifted past the emergency
// threshold, ignoring the routine cooldown, and fixes its play state. It
// reports whether a correction was made.
func (e *Engine) EmergencySync(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.session.Snapshot()
	mode := snap.ActiveMode()
	if snap.IsHost || mode == nil {
		return false
	}

	tl := mode.Timeline()
	if tl.MediaID == "" || tl.MediaID != e.loadedID {
		return false
	}

	expected := e.expectedTime(tl)
	local, err := e.player.CurrentTime(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read player time", "error", err)
		return false
	}

	drift := math.Abs(local - expected)
	if drift <= e.cfg.EmergencyThreshold {
		return false
	}

	e.logger.WarnContext(ctx, "severe drift, emergency seek", "drift", drift, "target", expected)
	e.seek(ctx, expected)
	e.syncPlayState(ctx, tl, true)

	return true
}

// HandleEvent feeds a player event into the engine.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case EventReady:
		e.handleReady(ctx, ev)
	case EventStateChange:
		e.handleStateChange(ctx, ev)
	case EventError:
		e.handleError(ctx, ev)
	}
}

// Reset stops the player and forgets everything learned about it.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stop(ctx)
	e.roleKnown = false
	e.wasHost = false
	e.lastSeekSeq = 0
	e.lastCorrection = time.Time{}
	e.lastReport = time.Time{}
	e.anchor = anchor{}
	e.anchorAt = time.Time{}
}

func (e *Engine) handleReady(ctx context.Context, ev Event) {
	if e.pendingID == "" || (ev.MediaID != "" && ev.MediaID != e.pendingID) {
		e.logger.DebugContext(ctx, "stale ready event ignored", "media_id", ev.MediaID, "pending", e.pendingID)
		return
	}

	e.logger.InfoContext(ctx, "player ready", "media_id", e.pendingID)
	e.loadedID = e.pendingID
	e.pendingID = ""
	e.freshLoad = true
	e.volume = -1
	e.advancedFor = ""

	if e.deferred {
		e.deferred = false
		e.reconcile(ctx, e.session.Snapshot())
	}
}

func (e *Engine) handleStateChange(ctx context.Context, ev Event) {
	if ev.State != StateEnded || e.loadedID == "" {
		return
	}

	snap := e.session.Snapshot()
	if !snap.IsHost {
		return
	}
	mode := snap.ActiveMode()
	if mode == nil || mode.Timeline().MediaID != e.loadedID || e.advancedFor == e.loadedID {
		return
	}

	e.advancedFor = e.loadedID
	e.logger.InfoContext(ctx, "media ended, advancing", "media_id", e.loadedID)
	if err := e.session.Advance(ctx); err != nil {
		e.logger.ErrorContext(ctx, "failed to advance", "error", err)
	}
}

func (e *Engine) handleError(ctx context.Context, ev Event) {
	e.logger.WarnContext(ctx, "player error", "media_id", ev.MediaID, "error", ev.Err)
	if e.pendingID == "" || (ev.MediaID != "" && ev.MediaID != e.pendingID) {
		return
	}

	// Do not reload a broken item on every pass; a new item clears this.
	e.failedID = e.pendingID
	e.pendingID = ""
	e.deferred = false
}

// reconcile must be called with mu held.
func (e *Engine) reconcile(ctx context.Context, snap roomservice.Snapshot) {
	if !e.roleKnown || e.wasHost != snap.IsHost {
		e.logger.InfoContext(ctx, "role changed", "is_host", snap.IsHost)
		e.roleKnown = true
		e.wasHost = snap.IsHost
		e.lastCorrection = time.Time{}
		e.lastReport = time.Time{}
		if mode := snap.ActiveMode(); mode != nil {
			e.lastSeekSeq = mode.Timeline().SeekSeq
		}
	}

	mode := snap.ActiveMode()
	if mode == nil || mode.Timeline().MediaID == "" {
		e.stop(ctx)
		return
	}

	tl := mode.Timeline()
	expected := e.expectedTime(tl)

	if tl.MediaID != e.loadedID {
		e.load(ctx, tl.MediaID)
		return
	}

	e.syncVolume(ctx, tl)
	if snap.IsHost {
		e.hostPass(ctx, tl, expected)
		return
	}

	state := e.syncPlayState(ctx, tl, false)
	if e.correctDrift(ctx, tl, expected) && tl.IsPlaying && state == StateEnded {
		e.play(ctx)
	}
}

func (e *Engine) load(ctx context.Context, mediaID string) {
	e.deferred = true
	if mediaID == e.pendingID || mediaID == e.failedID {
		return
	}

	e.logger.InfoContext(ctx, "loading media", "media_id", mediaID)
	e.pendingID = mediaID
	e.failedID = ""
	if err := e.player.Load(ctx, mediaID); err != nil {
		e.logger.WarnContext(ctx, "failed to load media", "media_id", mediaID, "error", err)
		e.pendingID = ""
	}
}

func (e *Engine) stop(ctx context.Context) {
	if e.loadedID == "" && e.pendingID == "" {
		return
	}

	e.logger.InfoContext(ctx, "stopping player", "media_id", e.loadedID)
	if err := e.player.Stop(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to stop player", "error", err)
	}
	e.loadedID = ""
	e.pendingID = ""
	e.failedID = ""
	e.deferred = false
	e.freshLoad = false
	e.advancedFor = ""
	e.volume = -1
}

// hostPass never corrects drift: the host's player is the reference. It only
// applies the host's own explicit seeks and reports its position back. A track
// (re)start bumps seekSeq, so it restarts an ended player as well.
func (e *Engine) hostPass(ctx context.Context, tl room.Timeline, expected float64) {
	explicit := tl.SeekSeq != e.lastSeekSeq
	if !e.freshLoad && !explicit {
		e.syncPlayState(ctx, tl, false)
		e.report(ctx, tl)
		return
	}

	target := expected
	if e.freshLoad {
		// The host's player was not running during its own load, so the room
		// position is not extrapolated across it.
		target = tl.CurrentTime
	}
	e.freshLoad = false
	e.lastSeekSeq = tl.SeekSeq
	if explicit {
		e.advancedFor = ""
	}

	if local, err := e.player.CurrentTime(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to read player time", "error", err)
	} else if math.Abs(local-target) >= e.cfg.SeekThreshold {
		e.seek(ctx, target)
	}
	e.syncPlayState(ctx, tl, explicit)
}

func (e *Engine) report(ctx context.Context, tl room.Timeline) {
	now := e.clock.Now()
	if !e.lastReport.IsZero() && now.Sub(e.lastReport) < e.cfg.ReportInterval {
		return
	}

	local, err := e.player.CurrentTime(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read player time", "error", err)
		return
	}
	if !tl.IsPlaying && math.Abs(local-tl.CurrentTime) < e.cfg.SeekThreshold {
		return
	}

	e.lastReport = now
	if err := e.session.ReportTime(ctx, local); err != nil {
		e.logger.ErrorContext(ctx, "failed to report time", "error", err)
	}
}

// syncPlayState issues play or pause when the player disagrees with the room.
// An ended player is only restarted when fromEnded is set.
func (e *Engine) syncPlayState(ctx context.Context, tl room.Timeline, fromEnded bool) PlayerState {
	state, err := e.player.State(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read player state", "error", err)
		return state
	}

	switch {
	case tl.IsPlaying && !state.running():
		if state == StateEnded && !fromEnded {
			return state
		}
		e.play(ctx)
	case !tl.IsPlaying && state.running():
		e.logger.DebugContext(ctx, "pausing player")
		if err := e.player.Pause(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to pause player", "error", err)
		}
	}

	return state
}

func (e *Engine) play(ctx context.Context) {
	e.logger.DebugContext(ctx, "starting player")
	if err := e.player.Play(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to start player", "error", err)
	}
}

// correctDrift seeks to the room position when drift leaves the dead zone.
// Right after an explicit seek or a load the tight threshold applies and the
// cooldown is skipped.
func (e *Engine) correctDrift(ctx context.Context, tl room.Timeline, expected float64) bool {
	local, err := e.player.CurrentTime(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read player time", "error", err)
		return false
	}

	explicit := e.freshLoad || tl.SeekSeq != e.lastSeekSeq
	e.freshLoad = false
	e.lastSeekSeq = tl.SeekSeq

	threshold := e.cfg.RoutineThreshold
	if explicit {
		threshold = e.cfg.SeekThreshold
	}

	drift := math.Abs(local - expected)
	if drift < threshold {
		return false
	}

	now := e.clock.Now()
	if !explicit && !e.lastCorrection.IsZero() && now.Sub(e.lastCorrection) < e.cfg.Cooldown {
		e.logger.DebugContext(ctx, "drift correction in cooldown", "drift", drift)
		return false
	}

	e.logger.InfoContext(ctx, "correcting drift", "drift", drift, "target", expected, "explicit", explicit)
	e.seek(ctx, expected)

	return true
}

func (e *Engine) seek(ctx context.Context, target float64) {
	if duration, err := e.player.Duration(ctx); err == nil && duration > 0 {
		target = min(target, duration)
	}

	e.lastCorrection = e.clock.Now()
	if err := e.player.Seek(ctx, target); err != nil {
		e.logger.WarnContext(ctx, "failed to seek player", "target", target, "error", err)
	}
}

func (e *Engine) syncVolume(ctx context.Context, tl room.Timeline) {
	if tl.Volume == e.volume {
		return
	}

	if err := e.player.SetVolume(ctx, tl.Volume); err != nil {
		e.logger.WarnContext(ctx, "failed to set volume", "volume", tl.Volume, "error", err)
		return
	}
	e.volume = tl.Volume
}

// expectedTime extrapolates the room position by the local time elapsed
// since the current anchor was first observed.
func (e *Engine) expectedTime(tl room.Timeline) float64 {
	now := e.clock.Now()
	key := anchor{
		mediaID:     tl.MediaID,
		currentTime: tl.CurrentTime,
		updatedAt:   tl.UpdatedAt,
		isPlaying:   tl.IsPlaying,
	}
	if key != e.anchor || e.anchorAt.IsZero() {
		e.anchor = key
		e.anchorAt = now
	}

	if !tl.IsPlaying {
		return tl.CurrentTime
	}

	return tl.CurrentTime + now.Sub(e.anchorAt).Seconds()
}
