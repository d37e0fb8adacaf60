package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/config"
	"github.com/nexusroom/server/internal/net/message"
)

const joinTimeout = 10 * time.Second

// JoinHandler finishes the join flow for a freshly upgraded session:
// authentication, supersede, record load and room insertion. It closes the
// session itself on failure, with the appropriate close code.
type JoinHandler func(ctx context.Context, sess *Session, join message.Join)

// Server terminates HTTP: the /ws upgrade endpoint plus the ambient
// /healthz and /metrics mounts. Upgraded sessions are handed to the join
// handler; everything after that belongs to the rooms.
type Server struct {
	cfg      config.ServerConfig
	rl       config.RateLimitConfig
	upgrader websocket.Upgrader
	ln       net.Listener
	httpSrv  *http.Server
	nextID   atomic.Uint64
	onJoin   JoinHandler
	log      *zap.Logger
}

func NewServer(cfg *config.Config, onJoin JoinHandler, log *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg.Server,
		rl:     cfg.RateLimit,
		onJoin: onJoin,
		log:    log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	for _, o := range s.cfg.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Router mounts the transport and observability endpoints.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"name":   s.cfg.Name,
		"uptime": time.Now().Unix() - s.cfg.StartTime,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	msgRate := 0.0
	burst := 0
	if s.rl.Enabled {
		msgRate = s.rl.MessagesPerSecond
		burst = s.rl.Burst
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.cfg.InQueueSize, s.cfg.OutQueueSize, msgRate, burst, s.log)
	sess.Start()
	s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

	// The request context dies when this handler returns; the join flow
	// runs on its own goroutine with its own deadline.
	go s.joinFlow(sess, r.URL.Query().Get("token"))
}

// joinFlow waits for the first frame, requires it to be a join, and hands
// the session to the join handler. Token verification and record loading
// are suspending, which is why this runs off the room tick path.
func (s *Server) joinFlow(sess *Session, queryToken string) {
	var data []byte
	select {
	case data = <-sess.InQueue:
	case <-time.After(joinTimeout):
		sess.CloseWithCode(CloseAuthRequired, "join timeout")
		return
	case <-sess.closeCh:
		return
	}

	var env message.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != message.TypeJoin {
		sess.CloseWithCode(CloseAuthRequired, "first frame must be join")
		return
	}
	join, err := message.Decode[message.Join](env.Payload)
	if err != nil {
		sess.CloseWithCode(CloseAuthRequired, "malformed join payload")
		return
	}
	if join.Token == "" {
		join.Token = queryToken
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	s.onJoin(ctx, sess, join)
}

// Listen binds the listener. With Port set it binds exactly that port;
// otherwise it probes sequentially from the configured start until a bind
// succeeds. Returns the bound port.
func (s *Server) Listen() (int, error) {
	if s.cfg.Port > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
		if err != nil {
			return 0, err
		}
		s.ln = ln
		return s.cfg.Port, nil
	}

	start := s.cfg.PortProbe
	if start <= 0 {
		start = 2567
	}
	attempts := s.cfg.PortProbeMax
	if attempts <= 0 {
		attempts = 16
	}
	for i := 0; i < attempts; i++ {
		port := start + i
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			s.ln = ln
			return port, nil
		}
		s.log.Debug("port busy, probing next", zap.Int("port", port))
	}
	return 0, fmt.Errorf("no free port in probe range %d-%d", start, start+attempts-1)
}

// Serve runs the HTTP server on the bound listener until Shutdown.
func (s *Server) Serve() error {
	if s.ln == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	s.httpSrv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpSrv.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains the HTTP server.
// Open sessions are owned by their rooms and closed during room disposal.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		if s.ln != nil {
			return s.ln.Close()
		}
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
