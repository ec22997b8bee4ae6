package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Get("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", c.createRoom)
		r.Route("/{room-id}", func(r chi.Router) {
			r.Get("/", c.getRoom)
			r.Post("/members", c.joinRoom)
			r.Delete("/members/{member-id}", c.leaveRoom)
		})
	})

	r.Route("/ws/rooms", func(r chi.Router) {
		r.Get("/create", c.wsCreateRoom)
		r.Route("/{room-id}", func(r chi.Router) {
			r.Get("/join", c.wsJoinRoom)
			r.Get("/members/{member-id}", c.wsRejoinRoom)
		})
	})

	return r
}
