// Package server exposes the scheduling engine over HTTP and
// WebSocket: a JSON API for state, events, simulation, planning, and
// history, plus a push channel that streams live frames to connected
// clients while a compressed realtime run is in progress.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/history"
	"github.com/tecpap/lineplan/runner"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients.
	MaxClients = 100

	// ShutdownTimeout is how long to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// stateFramesPerSecond caps state broadcasts so aggressive clock
	// compressions cannot flood clients. Report frames bypass the cap.
	stateFramesPerSecond = 20

	// broadcastQueueSize bounds frames waiting for the hub.
	broadcastQueueSize = 64
)

// Event sources stamped on journal entries created over the API.
const (
	SourceManualEvents    = "manual/events"
	SourceManualEventsNow = "manual/events_now"
	SourceSimulation      = "simulation"
)

// Options carries the optional collaborators of a Server.
type Options struct {
	// Store persists journal entries, runs, and hourly reports. Nil
	// disables the history endpoints.
	Store *history.Store

	// DatasetDir is where work_orders.csv and setup_matrix.csv live.
	// Empty disables CSV persistence on the mutating endpoints.
	DatasetDir string

	// AllowedOrigins are origin prefixes accepted for CORS and
	// WebSocket upgrades. Empty falls back to localhost only.
	AllowedOrigins []string

	Logger *zap.SugaredLogger
}

// Server wires the engine, the realtime runner, and the history store
// into one HTTP surface.
type Server struct {
	engine *engine.Engine
	runner *runner.Runner
	store  *history.Store

	datasetDir     string
	allowedOrigins []string

	mux *http.ServeMux

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan wsFrame
	mu         sync.RWMutex

	stateLimiter *rate.Limiter

	httpServer *http.Server

	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	broadcastDrops atomic.Int64

	startTime time.Time
	logger    *zap.SugaredLogger
}

// New creates a server around an engine and a realtime runner. The
// server registers itself as the runner's broadcaster so realtime
// frames reach WebSocket clients.
func New(eng *engine.Engine, run *runner.Runner, opts Options) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if run == nil {
		return nil, errors.New("runner cannot be nil")
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		engine:         eng,
		runner:         run,
		store:          opts.Store,
		datasetDir:     opts.DatasetDir,
		allowedOrigins: opts.AllowedOrigins,
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan wsFrame, broadcastQueueSize),
		stateLimiter:   rate.NewLimiter(rate.Limit(stateFramesPerSecond), stateFramesPerSecond),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		logger:         log,
	}
	s.setupRoutes()
	run.SetBroadcaster(s)
	return s, nil
}

// Handler returns the server's HTTP handler with all routes and CORS
// attached. Useful for tests and for mounting under another mux.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run is the hub event loop: it owns the client set and all sends on
// client channels, so frame delivery never races client teardown.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		case frame := <-s.broadcast:
			s.fanoutFrame(frame)
		}
	}
}

func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}
	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)
}

func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()

		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
	} else {
		s.mu.Unlock()
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// archiveJournal persists one journal entry when a store is attached.
// Persistence failures never disturb the request that produced the
// entry.
func (s *Server) archiveJournal(entry engine.JournalEntry) {
	if s.store == nil {
		return
	}
	if _, err := s.store.InsertJournal(entry); err != nil {
		s.logger.Warnw("Failed to archive journal entry",
			"event_type", entry.Type,
			"error", err,
		)
	}
}

func clientID(remoteAddr string) string {
	return fmt.Sprintf("%s_%d", remoteAddr, time.Now().UnixNano())
}
