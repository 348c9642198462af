package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/handlers"
)

func NewRouter(fh *handlers.FriendHandler, ch *handlers.ChatHandler, kh *handlers.KeyHandler, wsHandler *handlers.WebSocketHandler, allowedOrigins []string, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}),
		middleware.Recoverer,
	)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/api/v1/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api/v1/friends", func(r chi.Router) {
		r.Get("/", fh.List)
		r.Post("/requests", fh.SendRequest)
		r.Get("/requests/incoming", fh.Incoming)
		r.Post("/requests/{requestId}/accept", fh.Accept)
		r.Post("/requests/{requestId}/reject", fh.Reject)
	})

	r.Route("/api/v1/keys", func(r chi.Router) {
		r.Post("/", kh.Publish)
		r.Get("/{userId}", kh.Get)
	})

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Post("/start", ch.Start)
		r.Get("/room", ch.Room)
		r.Post("/leave", ch.Leave)
		// WebSocketエンドポイント
		r.Get("/ws", wsHandler.HandleWebSocket)
	})

	return r
}
