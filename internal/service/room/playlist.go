package room

import (
	"context"

	"github.com/sharetube/roomsync/internal/repository/room"
	"golang.org/x/exp/slices"
)

// AddToPlaylist appends track, or returns ErrPlaylistFull when the playlist
// is at its limit.
func (s *Session) AddToPlaylist(ctx context.Context, track room.Track) error {
	full := false
	err := s.hostIntent(ctx, "add to playlist", func(state *room.State) *room.Patch {
		full = s.playlistLimit > 0 && len(state.Playlist) >= s.playlistLimit
		if full {
			return nil
		}
		playlist := append(slices.Clone(state.Playlist), track)
		return &room.Patch{Playlist: &playlist}
	})
	if err != nil {
		return err
	}
	if full {
		return ErrPlaylistFull
	}

	return nil
}

func (s *Session) RemoveFromPlaylist(ctx context.Context, trackID string) error {
	return s.hostIntent(ctx, "remove from playlist", func(state *room.State) *room.Patch {
		playlist := slices.DeleteFunc(slices.Clone(state.Playlist), func(t room.Track) bool {
			return t.ID == trackID
		})
		if len(playlist) == len(state.Playlist) {
			return nil
		}
		return &room.Patch{Playlist: &playlist}
	})
}

// PlayNext starts the track after the current one, wrapping to the start of
// the playlist. The restart counts as a seek, so players already holding the
// same video rewind too.
func (s *Session) PlayNext(ctx context.Context) error {
	return s.hostIntent(ctx, "play next", func(state *room.State) *room.Patch {
		next, ok := nextTrack(state)
		if !ok {
			return nil
		}
		return &room.Patch{
			CurrentTrack: &next,
			IsPlaying:    ptr(true),
			CurrentTime:  ptr(0.0),
			BumpSeek:     true,
		}
	})
}

func nextTrack(state *room.State) (room.Track, bool) {
	if len(state.Playlist) == 0 {
		return room.Track{}, false
	}

	current := -1
	if state.CurrentTrack != nil {
		current = slices.IndexFunc(state.Playlist, func(t room.Track) bool {
			return t.ID == state.CurrentTrack.ID
		})
	}

	return state.Playlist[(current+1)%len(state.Playlist)], true
}
