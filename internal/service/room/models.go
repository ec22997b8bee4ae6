package room

import "github.com/sharetube/roomsync/internal/repository/room"

type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Snapshot is a consistent view of the session. IsHost is derived from State
// every time a snapshot is taken and never stored. Closed is set once the
// room was deleted or the member was removed from it.
type Snapshot struct {
	RoomID string
	State  *room.State
	Self   Identity
	IsHost bool
	Closed bool
}

func (s Snapshot) ActiveMode() room.Mode {
	return s.State.ActiveMode()
}
