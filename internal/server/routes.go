package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/utils"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/session/{code}", s.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/session/{code}/scoreboard", s.GetScoreboard).Methods(http.MethodGet)

	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})

	return c.Handler(r)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	writeResponse(w, startTime, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, startTime, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.sessions.CreateSession(r.Context(), req.Title)
	if err != nil {
		if errors.Is(err, internal.ErrInvalidCommand) {
			writeResponse(w, startTime, http.StatusBadRequest, "Title is required")
			return
		}
		log.Error().Err(err).Msg("[CreateSession] failed to create session")
		writeResponse(w, startTime, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeResponse(w, startTime, http.StatusCreated, createSessionResponse{Code: session.Code})
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	code := utils.NormalizeCode(mux.Vars(r)["code"])

	snapshot, err := s.sessions.Snapshot(r.Context(), code)
	if err != nil {
		s.writeLookupError(w, startTime, "GetSession", code, err)
		return
	}

	writeResponse(w, startTime, http.StatusOK, snapshot)
}

type scoreboardResponse struct {
	Scoreboard []internal.ScoreboardRow `json:"scoreboard"`
}

func (s *Server) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	code := utils.NormalizeCode(mux.Vars(r)["code"])

	rows, err := s.sessions.Scoreboard(r.Context(), code)
	if err != nil {
		s.writeLookupError(w, startTime, "GetScoreboard", code, err)
		return
	}

	writeResponse(w, startTime, http.StatusOK, scoreboardResponse{Scoreboard: rows})
}

func (s *Server) writeLookupError(w http.ResponseWriter, startTime int64, fn, code string, err error) {
	if errors.Is(err, internal.ErrSessionNotFound) {
		writeResponse(w, startTime, http.StatusNotFound, "Session not found")
		return
	}
	log.Error().Err(err).Str("session_code", code).Msgf("[%s] failed to load session", fn)
	writeResponse(w, startTime, http.StatusInternalServerError, "Failed to load session")
}

func writeResponse(w http.ResponseWriter, startTime int64, status int, data any) {
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: startTime,
		Data:          data,
	}

	endTime := time.Now().UnixMilli()
	resp.RespEndTime = endTime
	resp.NetRespTime = endTime - startTime

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("[writeResponse] error encoding response")
	}
}
