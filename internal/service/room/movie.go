package room

import (
	"context"

	"github.com/sharetube/roomsync/internal/repository/room"
)

func (s *Session) StartMovieMode(ctx context.Context) error {
	return s.hostIntent(ctx, "start movie mode", func(*room.State) *room.Patch {
		return &room.Patch{
			IsMovieMode: ptr(true),
			MovieState:  ptr(room.DefaultMovieState()),
		}
	})
}

func (s *Session) ExitMovieMode(ctx context.Context) error {
	return s.hostIntent(ctx, "exit movie mode", func(*room.State) *room.Patch {
		return &room.Patch{
			IsMovieMode:       ptr(false),
			ClearCurrentMovie: true,
			MovieState:        ptr(room.DefaultMovieState()),
		}
	})
}

func (s *Session) SelectMovie(ctx context.Context, movie room.Movie) error {
	return s.hostIntent(ctx, "select movie", func(*room.State) *room.Patch {
		return &room.Patch{
			CurrentMovie: &movie,
			MovieState:   ptr(room.DefaultMovieState()),
		}
	})
}

func (s *Session) PlayMovie(ctx context.Context) error {
	return s.hostIntent(ctx, "play movie", func(state *room.State) *room.Patch {
		if !state.IsMovieMode || state.CurrentMovie == nil {
			return nil
		}
		ms := state.MovieState
		ms.IsPlaying = true
		ms.IsLoading = false
		return &room.Patch{MovieState: &ms}
	})
}

func (s *Session) PauseMovie(ctx context.Context) error {
	return s.hostIntent(ctx, "pause movie", func(state *room.State) *room.Patch {
		if !state.IsMovieMode || state.CurrentMovie == nil {
			return nil
		}
		ms := state.MovieState
		ms.IsPlaying = false
		return &room.Patch{MovieState: &ms}
	})
}

func (s *Session) SeekMovie(ctx context.Context, seconds float64) error {
	return s.hostIntent(ctx, "seek movie", func(state *room.State) *room.Patch {
		if !state.IsMovieMode || state.CurrentMovie == nil {
			return nil
		}
		ms := state.MovieState
		ms.CurrentTime = max(0, seconds)
		return &room.Patch{MovieState: &ms, BumpMovieSeek: true}
	})
}

// UpdateMovieTime is the host's periodic movie position report.
func (s *Session) UpdateMovieTime(ctx context.Context, seconds float64) error {
	return s.hostIntent(ctx, "update movie time", func(state *room.State) *room.Patch {
		if !state.IsMovieMode || state.CurrentMovie == nil {
			return nil
		}
		ms := state.MovieState
		ms.CurrentTime = max(0, seconds)
		return &room.Patch{MovieState: &ms}
	})
}

// SetMovieVolume is open to every member; volume is advisory.
func (s *Session) SetMovieVolume(ctx context.Context, volume int) error {
	return s.memberIntent(ctx, "set movie volume", func(state *room.State) *room.Patch {
		if !state.IsMovieMode {
			return nil
		}
		ms := state.MovieState
		ms.Volume = clampVolume(volume)
		return &room.Patch{MovieState: &ms}
	})
}
