package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/saulx/selva/go-selva/system/subd/api"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
	rejectTimeout  = time.Second
)

// TCPListener runs one Session per accepted connection.  When the
// session limit is reached new connections are answered with an
// unavailable error and closed.
type TCPListener struct {
	ln          net.Listener
	newSession  func(id string, conn net.Conn) *Session
	maxSessions int
	metrics     *Metrics
	log         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	nextID   uint64
	closing  bool
	wg       sync.WaitGroup
}

// NewTCPListener listens on addr for sessions of server.
func NewTCPListener(addr string, server *Server) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPListener{
		ln: ln,
		newSession: func(id string, conn net.Conn) *Session {
			return server.NewSession(id, conn)
		},
		maxSessions: server.Spec.Config.MaxSessions,
		metrics:     server.Metrics,
		log:         server.Spec.Log,
		sessions:    make(map[string]*Session),
	}, nil
}

func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until Close.  Accept errors are retried with
// a growing delay.
func (l *TCPListener) Serve() error {
	l.log.Info("subd listening", "addr", l.ln.Addr().String(), "maxSessions", l.maxSessions)
	var delay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
			l.log.Warn("accept failed", "error", err, "retry", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0
		l.start(conn)
	}
}

func (l *TCPListener) start(conn net.Conn) {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		conn.Close()
		return
	}
	if l.maxSessions > 0 && len(l.sessions) >= l.maxSessions {
		l.mu.Unlock()
		l.metrics.RejectedSessions.Inc()
		l.log.Warn("session limit reached", "remote", conn.RemoteAddr().String(), "maxSessions", l.maxSessions)
		go reject(conn, l.maxSessions)
		return
	}
	l.nextID++
	id := "tcp-" + strconv.FormatUint(l.nextID, 10)
	sess := l.newSession(id, conn)
	l.sessions[id] = sess
	l.wg.Add(1)
	l.mu.Unlock()

	l.metrics.Sessions.Inc()
	go func() {
		defer l.wg.Done()
		defer l.metrics.Sessions.Dec()
		log := l.log.With("session", id, "remote", conn.RemoteAddr().String())
		log.Debug("session started")
		if err := sess.Run(); err != nil {
			log.Error("session failed", "error", err)
		}
		l.mu.Lock()
		delete(l.sessions, id)
		l.mu.Unlock()
		log.Debug("session ended")
	}()
}

func reject(conn net.Conn, limit int) {
	defer conn.Close()
	d, _ := json.Marshal(api.NewErrorResponse("", api.ErrCodeUnavailable,
		fmt.Sprintf("server is at its limit of %d sessions", limit)))
	conn.SetWriteDeadline(time.Now().Add(rejectTimeout))
	conn.Write(append(d, '\n'))
}

func (l *TCPListener) isClosing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closing
}

// Close stops accepting, closes every session and waits for them.
func (l *TCPListener) Close() error {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return nil
	}
	l.closing = true
	err := l.ln.Close()
	for _, sess := range l.sessions {
		sess.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	l.log.Info("subd listener stopped")
	return err
}

// SessionCount returns the number of running sessions.
func (l *TCPListener) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
