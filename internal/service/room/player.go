package room

import (
	"context"

	"github.com/sharetube/roomsync/internal/repository/room"
)

// Play loads track and starts it from the beginning.
func (s *Session) Play(ctx context.Context, track room.Track) error {
	return s.hostIntent(ctx, "play track", func(*room.State) *room.Patch {
		return &room.Patch{
			CurrentTrack: &track,
			IsPlaying:    ptr(true),
			CurrentTime:  ptr(0.0),
			BumpSeek:     true,
		}
	})
}

// Pause stops playback at the last known position.
func (s *Session) Pause(ctx context.Context) error {
	return s.hostIntent(ctx, "pause", func(state *room.State) *room.Patch {
		if state.CurrentTrack == nil {
			return nil
		}
		return &room.Patch{
			IsPlaying:   ptr(false),
			CurrentTime: ptr(state.CurrentTime),
		}
	})
}

func (s *Session) Resume(ctx context.Context) error {
	return s.hostIntent(ctx, "resume", func(state *room.State) *room.Patch {
		if state.CurrentTrack == nil {
			return nil
		}
		return &room.Patch{IsPlaying: ptr(true)}
	})
}

// Seek is an explicit host seek; members correct to it with the tight
// threshold.
func (s *Session) Seek(ctx context.Context, seconds float64) error {
	return s.hostIntent(ctx, "seek", func(state *room.State) *room.Patch {
		if state.CurrentTrack == nil {
			return nil
		}
		return &room.Patch{
			CurrentTime: ptr(max(0, seconds)),
			BumpSeek:    true,
		}
	})
}

// UpdateCurrentTime is the host's periodic position report.
func (s *Session) UpdateCurrentTime(ctx context.Context, seconds float64) error {
	return s.hostIntent(ctx, "update current time", func(state *room.State) *room.Patch {
		if state.CurrentTrack == nil {
			return nil
		}
		return &room.Patch{CurrentTime: ptr(max(0, seconds))}
	})
}

func (s *Session) SetVolume(ctx context.Context, volume int) error {
	return s.hostIntent(ctx, "set volume", func(*room.State) *room.Patch {
		return &room.Patch{Volume: ptr(clampVolume(volume))}
	})
}

// ReportTime writes the host position for whichever mode is active.
func (s *Session) ReportTime(ctx context.Context, seconds float64) error {
	switch s.ActiveMode().(type) {
	case room.MusicMode:
		return s.UpdateCurrentTime(ctx, seconds)
	case room.MovieMode:
		return s.UpdateMovieTime(ctx, seconds)
	default:
		return nil
	}
}

// Advance moves to the next item after the current one ended.
func (s *Session) Advance(ctx context.Context) error {
	switch s.ActiveMode().(type) {
	case room.MusicMode:
		return s.PlayNext(ctx)
	case room.MovieMode:
		return s.PauseMovie(ctx)
	default:
		return nil
	}
}
