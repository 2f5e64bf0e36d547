package server

import (
	"context"
	"net/http"
	"time"

	"github.com/scythe504/hotseat-backend/internal"
)

// Sessions is the slice of the engine the HTTP surface reads and creates
// sessions through.
type Sessions interface {
	CreateSession(ctx context.Context, title string) (internal.Session, error)
	Snapshot(ctx context.Context, code string) (internal.SessionSnapshot, error)
	Scoreboard(ctx context.Context, code string) ([]internal.ScoreboardRow, error)
}

type Server struct {
	sessions       Sessions
	ws             http.Handler
	metrics        http.Handler
	allowedOrigins []string
}

func NewServer(sessions Sessions, ws, metrics http.Handler, allowedOrigins []string) *Server {
	return &Server{
		sessions:       sessions,
		ws:             ws,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// HTTPServer wraps the routes in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
