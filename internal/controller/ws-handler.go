package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/player/wsplayer"
	"github.com/sharetube/roomsync/internal/repository/room"
	roomservice "github.com/sharetube/roomsync/internal/service/room"
	"github.com/sharetube/roomsync/pkg/ctxlogger"
	"github.com/sharetube/roomsync/pkg/rest"
)

const (
	closeWriteWait  = time.Second
	teardownTimeout = 2 * time.Second
)

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

type joinedOutput struct {
	RoomID   string `json:"room_id"`
	MemberID string `json:"member_id"`
}

type errorOutput struct {
	MessageType string `json:"message_type,omitempty"`
	Message     string `json:"message"`
	Errors      any    `json:"errors,omitempty"`
}

// establishFunc attaches session to a room. It reports false when the room or
// membership does not exist.
type establishFunc func(ctx context.Context, session *roomservice.Session) (bool, error)

func (c controller) wsCreateRoom(w http.ResponseWriter, r *http.Request) {
	input := displayNameInput{DisplayName: r.URL.Query().Get("display_name")}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	c.serveSession(w, r, func(ctx context.Context, session *roomservice.Session) (bool, error) {
		if _, err := session.Create(ctx, input.DisplayName); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (c controller) wsJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	input := displayNameInput{DisplayName: r.URL.Query().Get("display_name")}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	c.serveSession(w, r, func(ctx context.Context, session *roomservice.Session) (bool, error) {
		return session.Join(ctx, roomID, input.DisplayName)
	})
}

func (c controller) wsRejoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	memberID := chi.URLParam(r, "member-id")

	c.serveSession(w, r, func(ctx context.Context, session *roomservice.Session) (bool, error) {
		return session.Rejoin(ctx, roomID, memberID)
	})
}

// serveSession upgrades the request and serves one member until the socket
// closes, the member leaves or the room is gone. Closing the socket keeps the
// membership so that a reload can rejoin.
func (c controller) serveSession(w http.ResponseWriter, r *http.Request, establish establishFunc) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}
	defer ws.Close()

	ctx := r.Context()
	conn := wsplayer.NewConn(ws)
	session := roomservice.NewSession(c.roomRepo, c.logger, roomservice.WithPlaylistLimit(c.cfg.PlaylistLimit))
	defer session.Close()

	ok, err := establish(ctx, session)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to establish session", "error", err)
		conn.Send(ctx, "ERROR", errorOutput{Message: err.Error()})
		code := websocket.CloseInternalServerErr
		if errors.Is(err, room.ErrRoomFull) {
			code = websocket.ClosePolicyViolation
		}
		conn.CloseWith(code, err.Error())
		return
	}
	if !ok {
		conn.Send(ctx, "ROOM_NOT_FOUND", nil)
		conn.CloseWith(websocket.CloseNormalClosure, room.ErrRoomNotFound.Error())
		return
	}

	snap := session.Snapshot()
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", snap.RoomID))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", snap.Self.ID))

	if replaced := c.connRepo.Add(ws, snap.Self.ID); replaced != nil {
		c.logger.InfoContext(ctx, "member connected elsewhere, closing previous connection")
		replaced.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "connected elsewhere"),
			deadline(closeWriteWait))
		replaced.Close()
	}
	defer c.connRepo.RemoveByConn(ws)

	if err := conn.Send(ctx, "JOINED", joinedOutput{RoomID: snap.RoomID, MemberID: snap.Self.ID}); err != nil {
		c.logger.InfoContext(ctx, "failed to send joined", "error", err)
		return
	}

	c.logger.InfoContext(ctx, "member connected", "user_agent", r.UserAgent(), "connections", c.connRepo.Len())
	err = c.newClient(conn, session, r.UserAgent()).run(ctx)
	c.logger.InfoContext(ctx, "member disconnected", "reason", err)
}
