package room

import (
	"context"
	"fmt"

	"github.com/sharetube/roomsync/internal/repository/room"
)

func (s *Session) Create(ctx context.Context, displayName string) (string, error) {
	resp, err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{HostDisplayName: displayName})
	if err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}
	s.logger.InfoContext(ctx, "room created", "room_id", resp.RoomID, "member_id", resp.HostID)

	if err := s.attach(ctx, resp.RoomID, Identity{ID: resp.HostID, DisplayName: displayName}); err != nil {
		return "", err
	}

	return resp.RoomID, nil
}

// Join reports false when the room does not exist.
func (s *Session) Join(ctx context.Context, roomID, displayName string) (bool, error) {
	memberID, ok, err := s.roomRepo.JoinRoom(ctx, &room.JoinRoomParams{RoomID: roomID, DisplayName: displayName})
	if err != nil {
		return false, fmt.Errorf("failed to join room: %w", err)
	}
	if !ok {
		return false, nil
	}
	s.logger.InfoContext(ctx, "room joined", "room_id", roomID, "member_id", memberID)

	if err := s.attach(ctx, roomID, Identity{ID: memberID, DisplayName: displayName}); err != nil {
		return false, err
	}

	return true, nil
}

// Rejoin attaches to an existing membership, e.g. after a reload. It reports
// false when the membership is gone.
func (s *Session) Rejoin(ctx context.Context, roomID, memberID string) (bool, error) {
	ok, err := s.roomRepo.RejoinRoom(ctx, &room.RejoinRoomParams{RoomID: roomID, MemberID: memberID})
	if err != nil {
		return false, fmt.Errorf("failed to rejoin room: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := s.attach(ctx, roomID, Identity{ID: memberID}); err != nil {
		return false, err
	}

	return true, nil
}

// Leave removes the member from the room and drops the subscription.
func (s *Session) Leave(ctx context.Context) error {
	snap := s.Snapshot()
	if snap.RoomID == "" {
		return nil
	}

	s.detach()

	if err := s.roomRepo.LeaveRoom(ctx, &room.LeaveRoomParams{RoomID: snap.RoomID, MemberID: snap.Self.ID}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	s.logger.InfoContext(ctx, "room left", "room_id", snap.RoomID, "member_id", snap.Self.ID)

	return nil
}

// Close drops the subscription but keeps the membership.
func (s *Session) Close() {
	s.detach()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		RoomID: s.roomID,
		State:  s.state,
		Self:   s.self,
		IsHost: s.state != nil && s.state.HostID == s.self.ID,
		Closed: s.closed,
	}
}

func (s *Session) IsHost() bool {
	return s.Snapshot().IsHost
}

func (s *Session) ActiveMode() room.Mode {
	return s.Snapshot().ActiveMode()
}

// attach replaces any previous subscription with one for roomID. The old
// subscription is fully torn down before the new one is made.
func (s *Session) attach(ctx context.Context, roomID string, self Identity) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.teardown()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.roomID = roomID
	s.self = self
	s.state = nil
	s.closed = false
	s.mu.Unlock()

	unsubscribe, err := s.roomRepo.SubscribeToRoom(ctx, roomID, func(state *room.State) {
		s.apply(gen, state)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return nil
}

func (s *Session) detach() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.teardown()

	s.mu.Lock()
	s.gen++
	s.roomID = ""
	s.self = Identity{}
	s.state = nil
	s.closed = false
	s.mu.Unlock()

	s.notify()
}

// teardown must be called with lifecycleMu held.
func (s *Session) teardown() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session) apply(gen uint64, state *room.State) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	switch {
	case state == nil:
		s.logger.Info("room closed", "room_id", s.roomID)
		s.state = nil
		s.closed = true
	case !state.HasMember(s.self.ID):
		s.logger.Info("member no longer in room", "room_id", s.roomID, "member_id", s.self.ID)
		s.state = nil
		s.closed = true
	default:
		if s.self.DisplayName == "" {
			s.self.DisplayName = state.Members[s.self.ID].DisplayName
		}
		s.state = state
	}
	s.mu.Unlock()

	s.notify()
}
