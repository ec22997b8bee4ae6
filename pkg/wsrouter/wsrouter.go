package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, input T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes      map[string]route
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]route)}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

// Handle registers handler for messageType. The payload is decoded into T
// before the middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var input T
			if len(raw) == 0 || string(raw) == "null" {
				return input, nil
			}
			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, err
			}
			return input, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, input any) error {
			return handler(ctx, conn, input.(T))
		},
	}
}

// Dispatch routes a single decoded message.
func (r *WSRouter) Dispatch(ctx context.Context, conn *websocket.Conn, msg Message) error {
	rt, ok := r.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	input, err := rt.decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	h := rt.handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h(context.WithValue(ctx, messageTypeKey, msg.Type), conn, input)
}

// ServeConn reads messages from conn until it fails or ctx is done. Handler
// errors are passed to onError and do not stop the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn, onError func(ctx context.Context, err error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if err := r.Dispatch(ctx, conn, msg); err != nil && onError != nil {
			onError(context.WithValue(ctx, messageTypeKey, msg.Type), err)
		}
	}
}
