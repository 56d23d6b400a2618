package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/store"
)

const maxPageLimit = 1000

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	Token          string
	AllowedOrigins []string
	FramesPerSec   float64 // per connection; <= 0 disables limiting
	FrameBurst     int
}

type Server struct {
	relay          *Relay
	store          *store.Store
	hub            *Hub
	log            *zap.Logger
	authToken      string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	frameRate      rate.Limit
	frameBurst     int
}

func NewServer(r *Relay, opts ServerOptions) *Server {
	s := &Server{
		relay:          r,
		store:          r.store,
		hub:            r.hub,
		log:            r.log,
		authToken:      opts.Token,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		frameRate:      rate.Inf,
		frameBurst:     opts.FrameBurst,
	}
	if opts.FramesPerSec > 0 {
		s.frameRate = rate.Limit(opts.FramesPerSec)
	}
	if s.frameBurst <= 0 {
		s.frameBurst = 1
	}

	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /usuarios/", s.authorized(s.handleUsers))
	mux.HandleFunc("GET /dispositivos/", s.authorized(s.handleDevices))
	mux.HandleFunc("GET /dispositivos/pings-roubados", s.authorized(s.handleStolenPings))
	mux.HandleFunc("GET /emergencias/", s.authorized(s.handleEmergencies))
	mux.HandleFunc("PUT /emergencias/{id}/responder", s.authorized(s.handleRespond))
	mux.HandleFunc("GET /dashboard/stats", s.authorized(s.handleStats))
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns a mux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := s.hub.Add(conn)
	go s.readLoop(c, conn)
}

// readLoop feeds frames sent by emulators into the relay. Frames over the
// connection's rate are dropped, not queued.
func (s *Server) readLoop(c *hubClient, conn *websocket.Conn) {
	defer s.hub.Remove(c)

	limiter := rate.NewLimiter(s.frameRate, s.frameBurst)
	log := s.log.With(zap.String("client_id", c.id))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !limiter.Allow() {
			framesIn.WithLabelValues("", "rate_limited").Inc()
			log.Debug("frame dropped by rate limit")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.relay.Ingest(ctx, frame); err != nil {
			log.Debug("frame rejected", zap.Error(err))
		}
		cancel()
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	users, err := s.store.Users(r.Context(), page)
	s.reply(w, users, err)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	page, err := pageOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	devices, err := s.store.Devices(r.Context(), page)
	s.reply(w, devices, err)
}

func (s *Server) handleStolenPings(w http.ResponseWriter, r *http.Request) {
	page, err := pageOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pings, err := s.store.StolenPings(r.Context(), page)
	s.reply(w, pings, err)
}

func (s *Server) handleEmergencies(w http.ResponseWriter, r *http.Request) {
	page, err := pageOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	es, err := s.store.Emergencies(r.Context(), page)
	s.reply(w, es, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	s.reply(w, st, err)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid emergency id", http.StatusBadRequest)
		return
	}

	var body struct {
		Observacoes string `json:"observacoes"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	e, err := s.relay.Respond(r.Context(), id, body.Observacoes)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "emergency not found", http.StatusNotFound)
		return
	}
	s.reply(w, e, err)
}

func (s *Server) reply(w http.ResponseWriter, v any, err error) {
	if err != nil {
		s.log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

// pageOf reads skip/limit, defaulting to the standard window.
func pageOf(r *http.Request) (client.Page, error) {
	page := client.DefaultPage
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, fmt.Errorf("invalid skip %q", v)
		}
		page.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPageLimit {
			return page, fmt.Errorf("invalid limit %q", v)
		}
		page.Limit = n
	}
	return page, nil
}

func (s *Server) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully
// and disconnects every console.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, hub *Hub, log *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("relay listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
