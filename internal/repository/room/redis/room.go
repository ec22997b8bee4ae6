package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/repository/room"
)

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.CreateRoomResponse, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	now := r.now().UnixMilli()
	hostID := uuid.NewString()

	for range roomCodeAttempts {
		roomID := r.generator.GenerateRandomString(roomCodeLength)
		state := room.State{
			ID:       roomID,
			Name:     params.HostDisplayName + "'s Room",
			HostID:   hostID,
			HostName: params.HostDisplayName,
			Members: map[string]room.Member{
				hostID: {DisplayName: params.HostDisplayName, JoinedAt: now},
			},
			Volume:       room.DefaultVolume,
			Playlist:     []room.Track{},
			MovieState:   room.DefaultMovieState(),
			CreatedAt:    now,
			LastActivity: now,
		}

		data, err := json.Marshal(state)
		if err != nil {
			return room.CreateRoomResponse{}, fmt.Errorf("failed to encode room state: %w", err)
		}

		ok, err := r.rc.SetNX(ctx, r.getRoomKey(roomID), data, r.expireDuration).Result()
		if err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return room.CreateRoomResponse{}, r.storageError(err)
		}
		if ok {
			return room.CreateRoomResponse{RoomID: roomID, HostID: hostID}, nil
		}

		r.logger.InfoContext(ctx, "room code collision", "room_id", roomID)
	}

	return room.CreateRoomResponse{}, room.ErrCodeExhausted
}

// JoinRoom adds a new member to the room. A missing room is reported with
// ok == false and a nil error.
func (r repo) JoinRoom(ctx context.Context, params *room.JoinRoomParams) (string, bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if r.joinTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.joinTimeout)
		defer cancel()
	}

	memberID := uuid.NewString()
	_, err := r.mutate(ctx, params.RoomID, func(state *room.State) (mutation, error) {
		if r.membersLimit > 0 && len(state.Members) >= r.membersLimit {
			return mutationSkip, room.ErrRoomFull
		}
		state.Members[memberID] = room.Member{
			DisplayName: params.DisplayName,
			JoinedAt:    r.now().UnixMilli(),
		}
		state.LastActivity = r.now().UnixMilli()
		return mutationWrite, nil
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			r.logger.InfoContext(ctx, "room not found", "room_id", params.RoomID)
			return "", false, nil
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", false, err
	}

	return memberID, true, nil
}

// RejoinRoom checks that memberID is still part of the room and refreshes its
// activity. It reports false when either the room or the member is gone.
func (r repo) RejoinRoom(ctx context.Context, params *room.RejoinRoomParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	_, err := r.mutate(ctx, params.RoomID, func(state *room.State) (mutation, error) {
		if !state.HasMember(params.MemberID) {
			return mutationSkip, room.ErrMemberNotFound
		}
		state.LastActivity = r.now().UnixMilli()
		return mutationWrite, nil
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrMemberNotFound) {
			return false, nil
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return true, nil
}

// LeaveRoom removes the member. When the host leaves, the earliest remaining
// member becomes host; the last member leaving deletes the room.
func (r repo) LeaveRoom(ctx context.Context, params *room.LeaveRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	_, err := r.mutate(ctx, params.RoomID, func(state *room.State) (mutation, error) {
		if !state.HasMember(params.MemberID) {
			return mutationSkip, nil
		}

		delete(state.Members, params.MemberID)
		if len(state.Members) == 0 {
			return mutationDelete, nil
		}

		if state.HostID == params.MemberID {
			newHostID := state.MemberIDsByJoinTime()[0]
			state.HostID = newHostID
			state.HostName = state.Members[newHostID].DisplayName
			r.logger.InfoContext(ctx, "host left, promoting member", "room_id", params.RoomID, "member_id", newHostID)
		}
		state.LastActivity = r.now().UnixMilli()

		return mutationWrite, nil
	})
	if err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) UpdateRoomState(ctx context.Context, roomID string, patch *room.Patch) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomID, "patch", patch)
	if patch.IsEmpty() {
		return nil
	}

	if _, err := r.mutate(ctx, roomID, func(state *room.State) (mutation, error) {
		patch.Apply(state, r.now())
		return mutationWrite, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// MutateRoomState builds a patch from the current stored state and applies it
// in the same transaction, so read-modify-write intents such as playlist edits
// never work from a stale copy. A nil or empty patch leaves the room untouched.
func (r repo) MutateRoomState(ctx context.Context, roomID string, build func(*room.State) *room.Patch) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomID)

	if _, err := r.mutate(ctx, roomID, func(state *room.State) (mutation, error) {
		patch := build(state)
		if patch == nil || patch.IsEmpty() {
			return mutationSkip, nil
		}
		r.logger.DebugContext(ctx, "applying patch", "room_id", roomID, "patch", patch)
		patch.Apply(state, r.now())
		return mutationWrite, nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// GetRoom returns nil without an error when the room does not exist.
func (r repo) GetRoom(ctx context.Context, roomID string) (*room.State, error) {
	data, err := r.rc.Get(ctx, r.getRoomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, r.storageError(err)
	}

	return r.decodeState(data)
}
