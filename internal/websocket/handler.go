package websocket

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Config holds websocket connection settings.
type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	CommandTimeout time.Duration
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     256,
		CommandTimeout: 10 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// Handler upgrades HTTP requests to websocket connections bound to the hub.
type Handler struct {
	hub      *Hub
	engine   Engine
	cfg      Config
	upgrader websocket.Upgrader

	// ctx is the parent of every command context; cancelled on shutdown.
	ctx context.Context
}

func NewHandler(ctx context.Context, hub *Hub, engine Engine, cfg Config) *Handler {
	return &Handler{
		hub:    hub,
		engine: engine,
		cfg:    cfg,
		ctx:    ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("[ServeHTTP] websocket upgrade failed")
		return
	}

	c := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    h.hub,
		engine: h.engine,
		cfg:    h.cfg,
		send:   make(chan []byte, h.cfg.SendBuffer),
	}
	h.hub.register(c)

	log.Info().
		Str("connection_id", c.id).
		Str("remote_addr", r.RemoteAddr).
		Msg("[ServeHTTP] websocket connection established")

	go c.writePump()
	go c.readPump(h.ctx)
}
