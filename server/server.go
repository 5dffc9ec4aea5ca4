// Package server is the HTTP surface of the voting service: thin adapters
// that translate request bodies and query parameters into core calls and map
// core error kinds to status codes. No voting logic lives here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"fipvote/messages"
	"fipvote/native/votes"
	"fipvote/observability"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine *votes.Engine
	Oracle votes.PowerOracle
	// VoteLength is the voting window, in seconds, applied to every
	// lifecycle evaluation.
	VoteLength uint64
	Log        *slog.Logger
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	engine     *votes.Engine
	oracle     votes.PowerOracle
	voteLength uint64
	log        *slog.Logger

	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{
		engine:     cfg.Engine,
		oracle:     cfg.Oracle,
		voteLength: cfg.VoteLength,
		log:        log,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)
	r.Use(cors.AllowAll().Handler)

	r.Route("/filecoin", func(api chi.Router) {
		api.Get("/vote", s.GetVote)
		api.Get("/delegates", s.GetDelegates)
		api.Get("/votingpower", s.GetVotingPower)
		api.Get("/votestarters", s.GetVoteStarters)
		api.Get("/activevotes", s.GetActiveVotes)
		api.Get("/concludedvotes", s.GetConcludedVotes)
		api.Get("/allconcludedvotes", s.GetAllConcludedVotes)
		api.Get("/storage", s.GetStorage)

		api.Post("/vote", s.RegisterVote)
		api.Post("/startvote", s.StartVote)
		api.Post("/registerstarter", s.RegisterVoteStarter)
		api.Post("/register", s.RegisterVoter)
		api.Post("/unregister", s.UnregisterVoter)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// observe records request latency and status for every route.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if ctx := chi.RouteContext(r.Context()); ctx != nil {
			if pattern := ctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		observability.Metrics().ObserveRequest(route, r.Method, ww.Status(), time.Since(started))
		s.log.Info("request",
			"route", route,
			"method", r.Method,
			"status", ww.Status(),
			"elapsed", time.Since(started).String(),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encoding response", "err", err)
	}
}

// writeError maps core error kinds onto status codes: malformed input is the
// client's fault, refused operations are forbidden, anything else is a
// server-side failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, messages.ErrInvalidSignature),
		errors.Is(err, messages.ErrInvalidMessageFormat),
		errors.Is(err, messages.ErrInvalidVoteOption),
		errors.Is(err, messages.ErrInvalidAddress),
		errors.Is(err, votes.ErrInvalidNetwork):
		status = http.StatusBadRequest
	case errors.Is(err, votes.ErrNotAuthorized),
		errors.Is(err, votes.ErrVoteAlreadyExists),
		errors.Is(err, votes.ErrVoteNotActive),
		errors.Is(err, votes.ErrDuplicateVote),
		errors.Is(err, votes.ErrVoterNotRegistered),
		errors.Is(err, votes.ErrNoDelegates):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

func queryNetwork(r *http.Request) (votes.Network, error) {
	return votes.ParseNetwork(r.URL.Query().Get("network"))
}

func requestContext(r *http.Request) context.Context {
	return r.Context()
}
