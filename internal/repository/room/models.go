package room

import (
	"cmp"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const DefaultVolume = 70

type Track struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
	Duration  string `json:"duration,omitempty"`
	VideoID   string `json:"video_id"`
}

type Movie struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Year            string   `json:"year,omitempty"`
	Poster          string   `json:"poster,omitempty"`
	Plot            string   `json:"plot,omitempty"`
	Runtime         string   `json:"runtime,omitempty"`
	Genre           string   `json:"genre,omitempty"`
	IMDbRating      string   `json:"imdb_rating,omitempty"`
	Director        string   `json:"director,omitempty"`
	Actors          string   `json:"actors,omitempty"`
	EmbedURL        string   `json:"embed_url,omitempty"`
	StreamURL       string   `json:"stream_url,omitempty"`
	FallbackSources []string `json:"fallback_sources,omitempty"`
}

// MediaID is the identifier handed to the player when loading the movie.
func (m Movie) MediaID() string {
	switch {
	case m.EmbedURL != "":
		return m.EmbedURL
	case m.StreamURL != "":
		return m.StreamURL
	default:
		return m.ID
	}
}

type MovieState struct {
	IsPlaying    bool    `json:"is_playing"`
	CurrentTime  float64 `json:"current_time"`
	Volume       int     `json:"volume"`
	IsFullscreen bool    `json:"is_fullscreen"`
	IsLoading    bool    `json:"is_loading"`
	UpdatedAt    int64   `json:"updated_at"`
	SeekSeq      int64   `json:"seek_seq"`
}

func DefaultMovieState() MovieState {
	return MovieState{Volume: DefaultVolume}
}

type Member struct {
	DisplayName string `json:"display_name"`
	JoinedAt    int64  `json:"joined_at"`
}

// State is the shared record of one room. CurrentTime is the position at the
// moment it was written (UpdatedAt, unix ms), not a live value. Revision grows
// by one with every stored write.
type State struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	HostID       string            `json:"host_id"`
	HostName     string            `json:"host_name"`
	Members      map[string]Member `json:"members"`
	CurrentTrack *Track            `json:"current_track"`
	IsPlaying    bool              `json:"is_playing"`
	CurrentTime  float64           `json:"current_time"`
	UpdatedAt    int64             `json:"updated_at"`
	SeekSeq      int64             `json:"seek_seq"`
	Volume       int               `json:"volume"`
	Playlist     []Track           `json:"playlist"`
	IsMovieMode  bool              `json:"is_movie_mode"`
	CurrentMovie *Movie            `json:"current_movie"`
	MovieState   MovieState        `json:"movie_state"`
	CreatedAt    int64             `json:"created_at"`
	LastActivity int64             `json:"last_activity"`
	Revision     int64             `json:"revision"`
}

func (s *State) HasMember(memberID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Members[memberID]
	return ok
}

// MemberIDsByJoinTime returns member ids ordered by join time, oldest first.
func (s *State) MemberIDsByJoinTime() []string {
	ids := maps.Keys(s.Members)
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(s.Members[a].JoinedAt, s.Members[b].JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	return ids
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	c := *s
	c.Members = maps.Clone(s.Members)
	if s.CurrentTrack != nil {
		t := *s.CurrentTrack
		c.CurrentTrack = &t
	}
	if s.CurrentMovie != nil {
		m := *s.CurrentMovie
		m.FallbackSources = append([]string(nil), s.CurrentMovie.FallbackSources...)
		c.CurrentMovie = &m
	}
	c.Playlist = append([]Track(nil), s.Playlist...)

	return &c
}
