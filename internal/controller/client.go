package controller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/player/wsplayer"
	"github.com/sharetube/roomsync/internal/repository/room"
	"github.com/sharetube/roomsync/internal/service/playback"
	roomservice "github.com/sharetube/roomsync/internal/service/room"
	"github.com/sharetube/roomsync/internal/service/supervisor"
	"github.com/sharetube/roomsync/pkg/validator"
	"github.com/sharetube/roomsync/pkg/wsrouter"
	"golang.org/x/sync/errgroup"
)

var (
	errRoomClosed = errors.New("room closed")
	errLeft       = errors.New("member left")
)

type roomStateOutput struct {
	Room     *room.State `json:"room"`
	MemberID string      `json:"member_id"`
	IsHost   bool        `json:"is_host"`
}

type validationError struct {
	errors []validator.ValidationError
}

func (e validationError) Error() string {
	return "invalid payload"
}

// client is everything one connected member runs: the session, the remote
// player, its reconciliation engine and, on mobile, a sync supervisor.
type client struct {
	ctrl       controller
	conn       *wsplayer.Conn
	session    *roomservice.Session
	player     *wsplayer.Player
	engine     *playback.Engine
	supervisor *supervisor.Supervisor
	mux        *wsrouter.WSRouter
	logger     *slog.Logger

	// leave ends run with errLeft.
	leave context.CancelCauseFunc
}

func (c controller) newClient(conn *wsplayer.Conn, session *roomservice.Session, userAgent string) *client {
	player := wsplayer.New(conn, c.logger)
	cl := &client{
		ctrl:    c,
		conn:    conn,
		session: session,
		player:  player,
		engine:  playback.NewEngine(player, session, playback.SystemClock, c.cfg.Playback, c.logger),
		logger:  c.logger,
	}
	if supervisor.IsMobileUserAgent(userAgent) {
		cl.supervisor = supervisor.New(cl.engine, session, player, c.cfg.Supervisor, c.logger)
	}
	cl.mux = cl.newWSRouter(c.wsRequestIdWSMw(), c.loggerWSMw(), c.validateWSMw())

	return cl
}

// run blocks until the socket fails, the member leaves or the room closes.
func (cl *client) run(ctx context.Context) error {
	ctx, leave := context.WithCancelCause(ctx)
	defer leave(nil)
	cl.leave = leave

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return playback.NewRunner(cl.engine, cl.session, cl.player.Events()).Run(gctx)
	})
	if cl.supervisor != nil {
		cl.logger.InfoContext(ctx, "mobile client, supervising sync")
		g.Go(func() error {
			return cl.supervisor.Run(gctx)
		})
	}
	g.Go(func() error {
		return cl.streamState(gctx)
	})
	g.Go(func() error {
		return cl.mux.ServeConn(gctx, cl.conn.WS(), cl.onError)
	})
	g.Go(func() error {
		// Unblocks ServeConn's read.
		<-gctx.Done()
		cl.conn.WS().Close()
		return nil
	})
	err := g.Wait()

	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	cl.engine.Reset(resetCtx)

	if cause := context.Cause(ctx); errors.Is(cause, errLeft) {
		return cause
	}
	return err
}

// streamState pushes the room state on every change until the room closes.
func (cl *client) streamState(ctx context.Context) error {
	changes, release := cl.session.Changes()
	defer release()
	for {
		if err := cl.pushState(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
}

func (cl *client) pushState(ctx context.Context) error {
	snap := cl.session.Snapshot()
	switch {
	case snap.Closed:
		cl.conn.Send(ctx, "ROOM_CLOSED", nil)
		cl.conn.CloseWith(websocket.CloseNormalClosure, errRoomClosed.Error())
		return errRoomClosed
	case snap.State == nil:
		// Not delivered yet, or the member just left.
		return nil
	}

	return cl.conn.Send(ctx, "ROOM_STATE", roomStateOutput{
		Room:     snap.State,
		MemberID: snap.Self.ID,
		IsHost:   snap.IsHost,
	})
}

func (cl *client) onError(ctx context.Context, err error) {
	out := errorOutput{
		MessageType: wsrouter.GetMessageTypeFromCtx(ctx),
		Message:     err.Error(),
	}

	var vErr validationError
	if errors.As(err, &vErr) {
		out.Errors = vErr.errors
	}

	cl.logger.InfoContext(ctx, "failed to handle message", "error", err)
	if err := cl.conn.Send(ctx, "ERROR", out); err != nil {
		cl.logger.InfoContext(ctx, "failed to send error", "error", err)
	}
}
