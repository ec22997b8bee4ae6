package room

import (
	"log/slog"
	"time"

	omitnilpointers "github.com/sharetube/roomsync/pkg/omit-nil-pointers"
)

// Patch is a partial update of a room. Nil fields are left untouched.
type Patch struct {
	CurrentTrack      *Track
	ClearCurrentTrack bool
	IsPlaying         *bool
	CurrentTime       *float64
	Volume            *int
	Playlist          *[]Track
	HostID            *string
	// BumpSeek marks the CurrentTime write as an explicit seek.
	BumpSeek bool

	IsMovieMode       *bool
	CurrentMovie      *Movie
	ClearCurrentMovie bool
	MovieState        *MovieState
	BumpMovieSeek     bool
}

func (p *Patch) IsEmpty() bool {
	return p == nil || (p.CurrentTrack == nil && !p.ClearCurrentTrack && p.IsPlaying == nil &&
		p.CurrentTime == nil && p.Volume == nil && p.Playlist == nil && p.HostID == nil &&
		!p.BumpSeek && p.IsMovieMode == nil && p.CurrentMovie == nil && !p.ClearCurrentMovie &&
		p.MovieState == nil && !p.BumpMovieSeek)
}

// Apply merges the patch into s and refreshes LastActivity.
func (p *Patch) Apply(s *State, now time.Time) {
	nowMs := now.UnixMilli()

	if p.ClearCurrentTrack {
		s.CurrentTrack = nil
	}
	if p.CurrentTrack != nil {
		t := *p.CurrentTrack
		s.CurrentTrack = &t
	}
	if p.IsPlaying != nil {
		s.IsPlaying = *p.IsPlaying
	}
	if p.CurrentTime != nil {
		s.CurrentTime = *p.CurrentTime
		s.UpdatedAt = nowMs
	}
	if p.BumpSeek {
		s.SeekSeq++
	}
	if p.Volume != nil {
		s.Volume = *p.Volume
	}
	if p.Playlist != nil {
		s.Playlist = append([]Track(nil), (*p.Playlist)...)
	}
	if p.HostID != nil {
		s.HostID = *p.HostID
		if m, ok := s.Members[*p.HostID]; ok {
			s.HostName = m.DisplayName
		}
	}

	if p.IsMovieMode != nil {
		s.IsMovieMode = *p.IsMovieMode
	}
	if p.ClearCurrentMovie {
		s.CurrentMovie = nil
	}
	if p.CurrentMovie != nil {
		m := *p.CurrentMovie
		s.CurrentMovie = &m
	}
	if p.MovieState != nil {
		prev := s.MovieState
		s.MovieState = *p.MovieState
		s.MovieState.SeekSeq = prev.SeekSeq
		s.MovieState.UpdatedAt = prev.UpdatedAt
		if prev.CurrentTime != p.MovieState.CurrentTime || prev.IsPlaying != p.MovieState.IsPlaying {
			s.MovieState.UpdatedAt = nowMs
		}
	}
	if p.BumpMovieSeek {
		s.MovieState.SeekSeq++
	}

	s.LastActivity = nowMs
}

func (p *Patch) LogValue() slog.Value {
	fields := map[string]any{
		"current_track": p.CurrentTrack,
		"is_playing":    p.IsPlaying,
		"current_time":  p.CurrentTime,
		"volume":        p.Volume,
		"playlist":      p.Playlist,
		"host_id":       p.HostID,
		"is_movie_mode": p.IsMovieMode,
		"current_movie": p.CurrentMovie,
		"movie_state":   p.MovieState,
	}
	if p.ClearCurrentTrack {
		fields["clear_current_track"] = true
	}
	if p.ClearCurrentMovie {
		fields["clear_current_movie"] = true
	}
	if p.BumpSeek || p.BumpMovieSeek {
		fields["seek"] = true
	}

	return omitnilpointers.GroupValue(fields)
}
