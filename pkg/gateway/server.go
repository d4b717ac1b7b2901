// Package gateway is the HTTP surface of the transcription service.
//
// It exposes the ticket issuer, the WebSocket upgrade endpoint that
// spawns one session per connection, and an optional administrative
// surface over the audio archive.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/earshot/earshot/pkg/archive"
	"github.com/earshot/earshot/pkg/asr"
	"github.com/earshot/earshot/pkg/session"
	"github.com/earshot/earshot/pkg/storage"
	"github.com/earshot/earshot/pkg/ticket"
)

// TokenVerifier validates a user bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// TicketService issues and consumes one-use session tickets.
type TicketService interface {
	Issue(ctx context.Context, subject string) (string, error)
	Consume(ctx context.Context, id string) (string, error)
}

// Options wires the server's collaborators. Tickets is required; the
// rest degrade gracefully when absent: a nil Verifier disables ticket
// issuing, a nil Store disables archival and the admin surface, a nil
// Transcriber turns utterances into transcription_error frames.
type Options struct {
	Verifier    TokenVerifier
	Tickets     TicketService
	Store       storage.ObjectStore
	Transcriber asr.Transcriber

	// AuthorizedParties are the frontend origins allowed to open
	// WebSocket connections, in addition to localhost.
	AuthorizedParties []string

	// AdminToken guards the admin endpoints; empty disables them.
	AdminToken string

	DebugMode bool
	Archive   archive.Config
	Logger    *slog.Logger
}

// Server routes gateway HTTP traffic.
type Server struct {
	opts     Options
	log      *slog.Logger
	hosts    map[string]struct{}
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a gateway server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		opts:  opts,
		log:   log.With("component", "gateway"),
		hosts: allowedHosts(opts.AuthorizedParties),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ws/ticket", s.handleTicket)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	if opts.AdminToken != "" && opts.Store != nil {
		mux.HandleFunc("GET /api/admin/audio/stats", s.admin(s.handleAudioStats))
		mux.HandleFunc("GET /api/admin/audio/sessions/{id}", s.admin(s.handleSessionChunks))
		mux.HandleFunc("GET /api/admin/audio/download", s.admin(s.handleAudioDownload))
		mux.HandleFunc("DELETE /api/admin/audio", s.admin(s.handleAudioDelete))
		mux.HandleFunc("POST /api/admin/audio/retention", s.admin(s.handleRetention))
	}
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// allowedHosts maps the configured origins to bare hostnames, always
// including the local development hosts.
func allowedHosts(parties []string) map[string]struct{} {
	hosts := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
	}
	for _, p := range parties {
		h := p
		if u, err := url.Parse(p); err == nil && u.Hostname() != "" {
			h = u.Hostname()
		}
		hosts[h] = struct{}{}
	}
	return hosts
}

// checkOrigin admits requests without an Origin header (non-browser
// clients) and browser requests whose origin hostname is allowlisted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	_, ok := s.hosts[u.Hostname()]
	return ok
}

// handleTicket exchanges a verified user bearer token for a one-use
// WebSocket ticket.
func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	if s.opts.Verifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Ticket issuing is not configured",
		})
		return
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Missing Authorization header"})
		return
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid token"})
		return
	}
	subject, err := s.opts.Verifier.Verify(token)
	if err != nil {
		s.log.Warn("token verification failed", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token verification failed"})
		return
	}

	id, err := s.opts.Tickets.Issue(r.Context(), subject)
	if err != nil {
		s.log.Error("ticket issue failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to issue ticket"})
		return
	}
	s.log.Info("ticket issued", "subject", subject, "ticket", ticket.Redact(id))
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     id,
		"expires_in": int(ticket.TTL.Seconds()),
	})
}

// handleWS upgrades the connection and runs a session on it. The
// upgrader answers 403 itself when the origin check fails.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade rejected", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	cfg := session.Config{
		Tickets:     s.opts.Tickets,
		Transcriber: s.opts.Transcriber,
		DebugMode:   s.opts.DebugMode,
		Logger:      s.log,
	}
	if s.opts.Store != nil {
		cfg.NewArchiver = func(sessionID string) session.Archiver {
			return archive.New(sessionID, s.opts.Store, s.opts.Archive, s.log)
		}
	}
	session.New(id, conn, cfg).Run()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
