package redis

import (
	"context"
	"sync"
	"time"

	"github.com/sharetube/roomsync/internal/repository/room"
)

// SubscribeToRoom delivers the current room state and then every change in
// the order the store applied them; a change older than one already delivered
// is dropped. A nil state means the room was deleted or has expired and ends
// delivery. The returned function stops delivery and waits for the
// delivery goroutine; it must not be called from onChange.
func (r repo) SubscribeToRoom(ctx context.Context, roomID string, onChange func(*room.State)) (func(), error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomID)
	pubsub := r.rc.Subscribe(ctx, r.getChangesChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, r.storageError(err)
	}

	initial, err := r.GetRoom(ctx, roomID)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	messages := pubsub.Channel()

	go func() {
		defer close(done)

		onChange(initial)
		if initial == nil {
			return
		}

		ticker := time.NewTicker(r.existenceCheck)
		defer ticker.Stop()

		last := initial.Revision
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				n, err := r.rc.Exists(subCtx, r.getRoomKey(roomID)).Result()
				if err != nil {
					if subCtx.Err() == nil {
						r.logger.WarnContext(subCtx, "failed to check room existence", "room_id", roomID, "error", err)
					}
					continue
				}
				if n == 0 {
					r.logger.InfoContext(subCtx, "room expired", "room_id", roomID)
					onChange(nil)
					return
				}
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload == "" {
					onChange(nil)
					return
				}

				state, err := r.decodeState([]byte(msg.Payload))
				if err != nil {
					r.logger.WarnContext(subCtx, "dropping undecodable room change", "room_id", roomID, "error", err)
					continue
				}
				// The initial read can already include changes still queued on
				// the channel.
				if state.Revision <= last {
					r.logger.DebugContext(subCtx, "dropping stale room change", "room_id", roomID, "revision", state.Revision, "last", last)
					continue
				}
				last = state.Revision
				onChange(state)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			pubsub.Close()
			<-done
		})
	}, nil
}
