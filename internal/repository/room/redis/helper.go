package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/repository/room"
)

type mutation int

const (
	mutationSkip mutation = iota
	mutationWrite
	mutationDelete
)

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) getChangesChannel(roomID string) string {
	return "room:" + roomID + ":changes"
}

func (r repo) storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, room.ErrStorage) {
		return err
	}

	return fmt.Errorf("%w: %w", room.ErrStorage, err)
}

func (r repo) decodeState(data []byte) (*room.State, error) {
	var state room.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode room state: %w", err)
	}
	if state.Members == nil {
		state.Members = make(map[string]room.Member)
	}

	return &state, nil
}

// mutate runs fn against the current state of the room inside an optimistic
// transaction and publishes the result. fn decides whether the state is
// written back, deleted or left alone.
func (r repo) mutate(ctx context.Context, roomID string, fn func(*room.State) (mutation, error)) (*room.State, error) {
	key := r.getRoomKey(roomID)
	channel := r.getChangesChannel(roomID)

	var result *room.State
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return room.ErrRoomNotFound
			}
			return r.storageError(err)
		}

		state, err := r.decodeState(data)
		if err != nil {
			return err
		}

		action, err := fn(state)
		if err != nil {
			return err
		}

		switch action {
		case mutationSkip:
			result = state
			return nil
		case mutationDelete:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.Publish(ctx, channel, "")
				return nil
			})
			result = nil
			return err
		default:
			state.Revision++
			encoded, err := json.Marshal(state)
			if err != nil {
				return fmt.Errorf("failed to encode room state: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, r.expireDuration)
				pipe.Publish(ctx, channel, encoded)
				return nil
			})
			result = state
			return err
		}
	}

	for range maxTxRetries {
		err := r.rc.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrMemberNotFound), errors.Is(err, room.ErrRoomFull):
			return nil, err
		default:
			return nil, r.storageError(err)
		}
	}

	return nil, room.ErrConflict
}
