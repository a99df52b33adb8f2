// Package api provides HTTP handlers and the main API server logic for
// EcoHearing.
//
// It exposes RESTful endpoints for running hearing sessions: creating a
// session, submitting responses step by step, inspecting the exchange
// log, resetting, and reading the savings result of a completed session.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ecohearing/EcoHearing/internal/estimate"
	"github.com/ecohearing/EcoHearing/internal/flow"
	"github.com/ecohearing/EcoHearing/internal/store"
)

// Default server configuration constants
const (
	// DefaultAddr is the default API listen address
	DefaultAddr = ":8080"
	// DefaultRevealDelay simulates computation time before the savings
	// result is surfaced
	DefaultRevealDelay = 800 * time.Millisecond
)

// Opts holds configuration applied via Option values.
type Opts struct {
	Addr        string
	Pacing      time.Duration
	RevealDelay time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPacing sets the presentation delay between hearing steps.
func WithPacing(d time.Duration) Option {
	return func(o *Opts) { o.Pacing = d }
}

// WithRevealDelay sets the simulated computation delay before a result is
// returned.
func WithRevealDelay(d time.Duration) Option {
	return func(o *Opts) { o.RevealDelay = d }
}

// session binds one live hearing controller to its id and its
// computed-once savings result.
type session struct {
	id         string
	controller *flow.Controller
	createdAt  time.Time

	mu     sync.Mutex
	result *resultBody
}

// Server hosts the hearing sessions and their HTTP surface.
type Server struct {
	addr        string
	pacing      time.Duration
	revealDelay time.Duration
	store       store.Store
	engine      *estimate.Engine

	mu       sync.Mutex
	sessions map[string]*session
}

// NewServer creates a server persisting snapshots to st and estimating
// savings with eng.
func NewServer(st store.Store, eng *estimate.Engine, opts ...Option) *Server {
	cfg := Opts{
		Addr:        DefaultAddr,
		Pacing:      flow.DefaultPacing,
		RevealDelay: DefaultRevealDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:        cfg.Addr,
		pacing:      cfg.Pacing,
		revealDelay: cfg.RevealDelay,
		store:       st,
		engine:      eng,
		sessions:    make(map[string]*session),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/select", s.selectHandler)
	mux.HandleFunc("POST /sessions/{id}/text", s.textHandler)
	mux.HandleFunc("POST /sessions/{id}/file", s.fileHandler)
	mux.HandleFunc("POST /sessions/{id}/reset", s.resetHandler)
	mux.HandleFunc("GET /sessions/{id}/result", s.resultHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("EcoHearing API running", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// lookup finds a live session by id.
func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}
