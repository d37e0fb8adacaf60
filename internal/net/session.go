package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nexusroom/server/internal/monitor"
	"github.com/nexusroom/server/internal/net/message"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 8192
)

// Close codes sent with the closing control frame.
const (
	CloseNormal       = 1000 // admin kick, supersede, critical cheating
	CloseAuthInvalid  = 4001
	CloseAuthRequired = 4002
	CloseNameTaken    = 4003
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the room loop.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	state atomic.Int32 // message.SessionState stored as int32

	InQueue  chan []byte // room loop reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	IP        string
	AccountID string
	Name      string

	outBuf [][]byte // buffered frames, flushed once per tick (room loop only)

	limiter   *rate.Limiter
	rateDrops atomic.Int64

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	closeCode atomic.Int32

	log *zap.Logger
}

// NewSession wraps a connection. A nil conn is allowed for sessions that
// exist only inside tests; Start must not be called on those.
func NewSession(conn *websocket.Conn, id uint64, inSize, outSize int, msgRate float64, burst int, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		conn:     conn,
		InQueue:  make(chan []byte, inSize),
		OutQueue: make(chan []byte, outSize),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	if conn != nil {
		s.IP = conn.RemoteAddr().String()
	}
	if msgRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(msgRate), burst)
	}
	s.state.Store(int32(message.StateJoining))
	return s
}

func (s *Session) State() message.SessionState {
	return message.SessionState(s.state.Load())
}

func (s *Session) SetState(st message.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a frame for sending. Nothing is written to the socket until
// FlushOutput runs at the end of the tick.
// Called only from the room loop goroutine, no lock needed on outBuf.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// TrySend pushes a frame straight onto OutQueue, dropping it when the queue
// is full. Safe from any goroutine; used for replies sent off the tick path.
func (s *Session) TrySend(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
	}
}

// FlushOutput drains the output buffer to OutQueue for the writer goroutine.
// Called once per tick from the room loop. Non-blocking: a full OutQueue
// means the client cannot keep up, and the session is disconnected.
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow client")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// CloseWithCode sends a closing control frame carrying the code and reason,
// then tears the session down.
func (s *Session) CloseWithCode(code int, reason string) {
	if s.closed.Load() {
		return
	}
	s.closeCode.Store(int32(code))
	if s.conn != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(writeWait)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			s.log.Debug("close frame write failed", zap.Error(err))
		}
	}
	s.Close()
}

// CloseCode returns the code sent with CloseWithCode, or 0 while the
// session is open or was torn down without a close frame.
func (s *Session) CloseCode() int {
	return int(s.closeCode.Load())
}

// Close shuts the session down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(message.StateClosing)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// TakeRateDrops returns and resets the count of frames dropped by the rate
// limiter since the last call. The room charges these against the sender's
// action window.
func (s *Session) TakeRateDrops() int {
	return int(s.rateDrops.Swap(0))
}

// readLoop reads frames from the socket and pushes them onto InQueue for
// the room loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		monitor.RecordInbound()

		if s.limiter != nil && !s.limiter.Allow() {
			s.rateDrops.Add(1)
			s.TrySend(message.Encode(message.TypeRateLimitExceeded, message.ErrorReply{
				Code:   "RateLimited",
				Reason: "message rate exceeded",
			}))
			continue
		}

		// Block until InQueue has space or the session closes. Dropping
		// frames here would desync server-tracked position, so the
		// per-session reader is the one that waits.
		select {
		case s.InQueue <- data:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop drains OutQueue to the socket and keeps the connection alive
// with pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
