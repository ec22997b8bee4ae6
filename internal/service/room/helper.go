package room

import (
	"context"
	"fmt"

	"github.com/sharetube/roomsync/internal/repository/room"
)

func ptr[T any](v T) *T {
	return &v
}

func clampVolume(volume int) int {
	return max(0, min(100, volume))
}

// hostIntent writes the patch built from the stored state, but only when the
// session is attached and currently host. Host privilege is checked against
// the local snapshot and again against the stored state, so a write racing a
// host transfer is dropped. Unmet preconditions are logged and are not errors.
func (s *Session) hostIntent(ctx context.Context, intent string, build func(*room.State) *room.Patch) error {
	return s.intent(ctx, intent, true, build)
}

func (s *Session) memberIntent(ctx context.Context, intent string, build func(*room.State) *room.Patch) error {
	return s.intent(ctx, intent, false, build)
}

func (s *Session) intent(ctx context.Context, intent string, hostOnly bool, build func(*room.State) *room.Patch) error {
	snap := s.Snapshot()
	if snap.State == nil {
		s.logger.InfoContext(ctx, "intent ignored, not in a room", "intent", intent)
		return nil
	}
	if hostOnly && !snap.IsHost {
		s.logger.InfoContext(ctx, "intent ignored, not host", "intent", intent, "room_id", snap.RoomID, "member_id", snap.Self.ID)
		return nil
	}

	err := s.roomRepo.MutateRoomState(ctx, snap.RoomID, func(state *room.State) *room.Patch {
		if !state.HasMember(snap.Self.ID) || (hostOnly && state.HostID != snap.Self.ID) {
			s.logger.InfoContext(ctx, "intent dropped, role changed", "intent", intent, "room_id", snap.RoomID, "member_id", snap.Self.ID)
			return nil
		}
		return build(state)
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", intent, err)
	}

	return nil
}
