package room

// Mode is the authoritative playback mode of a room: MusicMode, MovieMode or
// nil when nothing is loaded.
type Mode interface {
	Timeline() Timeline
	isMode()
}

// Timeline is the mode-independent view of what should be playing and where.
type Timeline struct {
	MediaID     string
	IsPlaying   bool
	CurrentTime float64
	UpdatedAt   int64
	SeekSeq     int64
	Volume      int
}

type MusicMode struct {
	Track       Track
	IsPlaying   bool
	CurrentTime float64
	UpdatedAt   int64
	SeekSeq     int64
	Volume      int
}

func (MusicMode) isMode() {}

func (m MusicMode) Timeline() Timeline {
	return Timeline{
		MediaID:     m.Track.VideoID,
		IsPlaying:   m.IsPlaying,
		CurrentTime: m.CurrentTime,
		UpdatedAt:   m.UpdatedAt,
		SeekSeq:     m.SeekSeq,
		Volume:      m.Volume,
	}
}

// MovieMode is active as soon as the host enters movie mode; Movie stays nil
// until one is selected.
type MovieMode struct {
	Movie *Movie
	State MovieState
}

func (MovieMode) isMode() {}

func (m MovieMode) Timeline() Timeline {
	t := Timeline{
		IsPlaying:   m.State.IsPlaying,
		CurrentTime: m.State.CurrentTime,
		UpdatedAt:   m.State.UpdatedAt,
		SeekSeq:     m.State.SeekSeq,
		Volume:      m.State.Volume,
	}
	if m.Movie != nil {
		t.MediaID = m.Movie.MediaID()
	}

	return t
}

func (s *State) ActiveMode() Mode {
	switch {
	case s == nil:
		return nil
	case s.IsMovieMode:
		return MovieMode{Movie: s.CurrentMovie, State: s.MovieState}
	case s.CurrentTrack != nil:
		return MusicMode{
			Track:       *s.CurrentTrack,
			IsPlaying:   s.IsPlaying,
			CurrentTime: s.CurrentTime,
			UpdatedAt:   s.UpdatedAt,
			SeekSeq:     s.SeekSeq,
			Volume:      s.Volume,
		}
	default:
		return nil
	}
}
