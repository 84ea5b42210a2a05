// Package web exposes the fan controller over HTTP and WebSocket:
// status snapshots, command submission and a push feed of status
// changes for frontends.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"grbl-fans-go/pkg/log"
	"grbl-fans-go/pkg/status"
)

// FanStatus is one fan's slice of a status report.
type FanStatus struct {
	Index  int  `json:"index"`
	Port   int  `json:"port"` // -1 when unassigned
	On     bool `json:"on"`
	Linked bool `json:"linked"`
}

// Report is a full controller status snapshot.
type Report struct {
	Fans           []FanStatus `json:"fans"`
	Mask           uint32      `json:"mask"`
	ShutoffPending bool        `json:"shutoff_pending"`
	Machine        string      `json:"machine_state"`
}

// Controller is the surface the server drives; the wiring layer
// implements it on top of the host and the fan subsystem.
type Controller interface {
	// Status returns the current snapshot.
	Status() Report

	// RunCommand parses and dispatches one command line.
	RunCommand(line string) status.Code

	// Override injects a realtime override byte.
	Override(cmd byte)
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP listen address (e.g. ":7125").
	Addr string

	// Interval is the status broadcast poll rate; 0 means 250ms.
	Interval time.Duration

	Controller Controller
	Logger     *log.Logger
}

// Server serves the controller API.
type Server struct {
	ctrl     Controller
	log      *log.Logger
	addr     string
	interval time.Duration

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientMu sync.RWMutex
	clients  map[int64]*wsClient
	nextID   int64

	running   atomic.Bool
	lastPush  []byte
	startTime time.Time
}

// New creates a server; Start runs it.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	s := &Server{
		ctrl:      cfg.Controller,
		log:       logger.WithPrefix("web"),
		addr:      cfg.Addr,
		interval:  interval,
		clients:   make(map[int64]*wsClient),
		startTime: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Handler builds the route table; split out so tests can drive it
// without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/server/info", s.handleServerInfo)
	mux.HandleFunc("/fans/status", s.handleStatus)
	mux.HandleFunc("/fans/command", s.handleCommand)
	mux.HandleFunc("/fans/override", s.handleOverride)
	return s.corsMiddleware(mux)
}

// Start runs the server until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	s.running.Store(true)
	s.log.Info("listening on %s", s.addr)
	go s.broadcastLoop()
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() error {
	s.running.Store(false)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*wsClient)
	s.clientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func (s *Server) writeError(w http.ResponseWriter, httpCode int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, map[string]any{
		"uptime":  time.Since(s.startTime).Seconds(),
		"clients": s.clientCount(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.ctrl == nil {
		s.writeError(w, http.StatusServiceUnavailable, "controller not attached")
		return
	}
	s.writeResult(w, s.ctrl.Status())
}

type commandRequest struct {
	Line string `json:"line"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.ctrl == nil {
		s.writeError(w, http.StatusServiceUnavailable, "controller not attached")
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Line == "" {
		s.writeError(w, http.StatusBadRequest, "missing command line")
		return
	}
	st := s.ctrl.RunCommand(req.Line)
	if st != status.OK {
		s.writeError(w, http.StatusUnprocessableEntity, st.String())
		return
	}
	s.writeResult(w, map[string]any{"status": "ok"})
}

type overrideRequest struct {
	Command byte `json:"command"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.ctrl == nil {
		s.writeError(w, http.StatusServiceUnavailable, "controller not attached")
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	s.ctrl.Override(req.Command)
	s.writeResult(w, map[string]any{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := s.newClient(conn)
	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()
	s.log.Debug("client %d connected", c.id)

	go c.writePump()

	// Push the current snapshot so new clients need not wait for the
	// next change.
	if s.ctrl != nil {
		c.send(notification{Method: "notify_status", Params: s.ctrl.Status()})
	}

	c.readPump()
}

func (s *Server) removeClient(c *wsClient) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	s.clientMu.Unlock()
	s.log.Debug("client %d disconnected", c.id)
}

func (s *Server) clientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// broadcastLoop pushes the status snapshot to every client whenever it
// changes.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for s.running.Load() {
		<-ticker.C
		s.broadcastStatus()
	}
}

func (s *Server) broadcastStatus() {
	if s.ctrl == nil {
		return
	}
	rep := s.ctrl.Status()
	encoded, err := json.Marshal(rep)
	if err != nil {
		return
	}

	s.clientMu.RLock()
	if string(encoded) == string(s.lastPush) {
		s.clientMu.RUnlock()
		return
	}
	s.clientMu.RUnlock()

	s.clientMu.Lock()
	s.lastPush = encoded
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientMu.Unlock()

	msg := notification{Method: "notify_status", Params: rep}
	for _, c := range clients {
		c.send(msg)
	}
}

// notification is a server-initiated push message.
type notification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// request is a client message: run a command or ask for a snapshot.
type request struct {
	Method string `json:"method"`
	Line   string `json:"line,omitempty"`
	ID     any    `json:"id,omitempty"`
}

type response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     any    `json:"id,omitempty"`
}

func (s *Server) dispatch(req request) response {
	switch req.Method {
	case "fans.status":
		if s.ctrl == nil {
			return response{Error: "controller not attached", ID: req.ID}
		}
		return response{Result: s.ctrl.Status(), ID: req.ID}
	case "fans.command":
		if s.ctrl == nil {
			return response{Error: "controller not attached", ID: req.ID}
		}
		if st := s.ctrl.RunCommand(req.Line); st != status.OK {
			return response{Error: st.String(), ID: req.ID}
		}
		return response{Result: "ok", ID: req.ID}
	default:
		return response{Error: fmt.Sprintf("method not found: %s", req.Method), ID: req.ID}
	}
}
