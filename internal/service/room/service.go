package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sharetube/roomsync/internal/repository/room"
)

var ErrPlaylistFull = errors.New("playlist is full")

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (string, bool, error)
	RejoinRoom(context.Context, *room.RejoinRoomParams) (bool, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	MutateRoomState(context.Context, string, func(*room.State) *room.Patch) error
	SubscribeToRoom(context.Context, string, func(*room.State)) (func(), error)
}

// Session is one client's view of a room: the latest room state, who the
// client is, and the single live subscription feeding that state.
type Session struct {
	roomRepo      iRoomRepo
	logger        *slog.Logger
	playlistLimit int

	// lifecycleMu serializes attach/detach so only one subscription exists.
	lifecycleMu sync.Mutex

	mu          sync.RWMutex
	gen         uint64
	roomID      string
	self        Identity
	state       *room.State
	closed      bool
	unsubscribe func()
	listeners   map[chan struct{}]struct{}
}

type Option func(*Session)

// WithPlaylistLimit caps the playlist length; zero means no limit.
func WithPlaylistLimit(limit int) Option {
	return func(s *Session) {
		s.playlistLimit = limit
	}
}

func NewSession(roomRepo iRoomRepo, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		roomRepo: roomRepo,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Changes returns a new channel that is signalled whenever the snapshot
// changes. Signals are coalesced, so a slow reader only sees the latest. The
// release function unregisters the channel and may be called more than once.
func (s *Session) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[chan struct{}]struct{})
	}
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.listeners, ch)
		s.mu.Unlock()
	}
}

func (s *Session) listenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.listeners)
}

func (s *Session) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
