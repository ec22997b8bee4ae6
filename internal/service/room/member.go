package room

import (
	"context"

	"github.com/sharetube/roomsync/internal/repository/room"
)

// TransferHost hands transport control to another member of the room. The
// caller loses host privilege as soon as the store reflects the change.
func (s *Session) TransferHost(ctx context.Context, memberID string) error {
	return s.hostIntent(ctx, "transfer host", func(state *room.State) *room.Patch {
		if memberID == state.HostID {
			return nil
		}
		if !state.HasMember(memberID) {
			s.logger.InfoContext(ctx, "transfer host ignored, unknown member", "room_id", state.ID, "member_id", memberID)
			return nil
		}
		return &room.Patch{HostID: &memberID}
	})
}
