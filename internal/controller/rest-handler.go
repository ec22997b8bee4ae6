package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/repository/room"
	"github.com/sharetube/roomsync/pkg/rest"
)

type displayNameInput struct {
	DisplayName string `json:"display_name" validate:"required,max=32"`
}

type createRoomResponse struct {
	RoomID   string `json:"room_id"`
	MemberID string `json:"member_id"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input displayNameInput
	if !c.readInput(w, r, &input) {
		return
	}

	resp, err := c.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{HostDisplayName: input.DisplayName})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create room", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{
		RoomID:   resp.RoomID,
		MemberID: resp.HostID,
	}})
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := chi.URLParam(r, "room-id")

	var input displayNameInput
	if !c.readInput(w, r, &input) {
		return
	}

	memberID, ok, err := c.roomRepo.JoinRoom(ctx, &room.JoinRoomParams{RoomID: roomID, DisplayName: input.DisplayName})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to join room", "room_id", roomID, "error", err)
		c.writeError(w, err)
		return
	}
	if !ok {
		c.writeError(w, room.ErrRoomNotFound)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{
		RoomID:   roomID,
		MemberID: memberID,
	}})
}

// leaveRoom is also the target of the page-unload beacon, so it closes the
// member's live socket if there is one.
func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := chi.URLParam(r, "room-id")
	memberID := chi.URLParam(r, "member-id")

	if err := c.roomRepo.LeaveRoom(ctx, &room.LeaveRoomParams{RoomID: roomID, MemberID: memberID}); err != nil {
		c.logger.ErrorContext(ctx, "failed to leave room", "room_id", roomID, "member_id", memberID, "error", err)
		c.writeError(w, err)
		return
	}

	if conn, err := c.connRepo.GetConn(memberID); err == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "left room"),
			deadline(closeWriteWait))
		conn.Close()
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := chi.URLParam(r, "room-id")

	state, err := c.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get room", "room_id", roomID, "error", err)
		c.writeError(w, err)
		return
	}
	if state == nil {
		c.writeError(w, room.ErrRoomNotFound)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

func (c controller) readInput(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}

func (c controller) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrMemberNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrRoomFull), errors.Is(err, room.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, room.ErrStorage), errors.Is(err, room.ErrCodeExhausted):
		status = http.StatusServiceUnavailable
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}
