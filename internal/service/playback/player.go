package playback

import (
	"context"
	"fmt"
)

// PlayerState mirrors the states an embedded media player reports.
type PlayerState int

const (
	StateUnstarted PlayerState = iota
	StatePlaying
	StatePaused
	StateEnded
	StateBuffering
)

var playerStateNames = map[PlayerState]string{
	StateUnstarted: "unstarted",
	StatePlaying:   "playing",
	StatePaused:    "paused",
	StateEnded:     "ended",
	StateBuffering: "buffering",
}

func (s PlayerState) String() string {
	if name, ok := playerStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PlayerState(%d)", int(s))
}

func ParsePlayerState(name string) (PlayerState, error) {
	for state, n := range playerStateNames {
		if n == name {
			return state, nil
		}
	}
	return StateUnstarted, fmt.Errorf("unknown player state %q", name)
}

// running reports whether the player is moving or about to move.
func (s PlayerState) running() bool {
	return s == StatePlaying || s == StateBuffering
}

// Player is a handle to one client's media player. Any call may fail, e.g.
// when a mobile browser rejects play before a user gesture.
type Player interface {
	Load(ctx context.Context, mediaID string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	CurrentTime(ctx context.Context) (float64, error)
	State(ctx context.Context) (PlayerState, error)
	Duration(ctx context.Context) (float64, error)
	SetVolume(ctx context.Context, volume int) error
	Stop(ctx context.Context) error
}

type EventKind int

const (
	EventReady EventKind = iota
	EventStateChange
	EventError
)

// Event is something the player reported on its own. MediaID names the item
// the event is about; an empty MediaID refers to whatever is current.
type Event struct {
	Kind    EventKind
	MediaID string
	State   PlayerState
	Err     error
}
