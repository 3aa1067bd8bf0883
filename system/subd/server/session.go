package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/saulx/selva/go-selva/system/subd/api"
)

// maxMessageSize bounds a single request line.
const maxMessageSize = 1 << 20

// Session represents a bidirectional session with a client.
// It handles parsing requests, dispatching to handlers, and sending responses/events.
type Session struct {
	ID      string
	conn    io.ReadWriteCloser
	store   Snapshotter
	hub     *WatchHub
	pool    *Pool
	metrics *Metrics
	log     *slog.Logger

	watchBuffer int

	subMu sync.Mutex
	subs  map[string]*subscription
	pubWG sync.WaitGroup

	outgoing chan *api.Response
	done     chan struct{}

	closeOnce    sync.Once
	closeOutOnce sync.Once
}

type subscription struct {
	pub    *Publisher
	cancel context.CancelFunc
}

// SessionConfig contains configuration for creating a session.
type SessionConfig struct {
	Store          Snapshotter
	Hub            *WatchHub
	Pool           *Pool
	Metrics        *Metrics
	Log            *slog.Logger
	OutgoingBuffer int // buffer size for outgoing channel (default 100)
	WatchBuffer    int // commit notifications buffered per subscription
}

// NewSession creates a new session for the given connection.
func NewSession(id string, conn io.ReadWriteCloser, cfg *SessionConfig) *Session {
	bufSize := cfg.OutgoingBuffer
	if bufSize <= 0 {
		bufSize = 100
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Session{
		ID:          id,
		conn:        conn,
		store:       cfg.Store,
		hub:         cfg.Hub,
		pool:        cfg.Pool,
		metrics:     metrics,
		log:         log.With("session", id),
		watchBuffer: cfg.WatchBuffer,
		subs:        make(map[string]*subscription),
		outgoing:    make(chan *api.Response, bufSize),
		done:        make(chan struct{}),
	}
}

// Run starts the session and blocks until it completes.
// It spawns a writer goroutine and reads requests until the connection
// ends.
func (s *Session) Run() error {
	var wg sync.WaitGroup

	// unblocks the reader when the session is closed
	wg.Go(func() {
		<-s.done
		s.conn.Close()
	})
	wg.Go(s.writer)

	err := s.reader()

	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.cleanupSubscriptions()
	s.pubWG.Wait()
	s.closeOutOnce.Do(func() {
		close(s.outgoing)
	})
	wg.Wait()
	return err
}

// Close signals the session to shut down.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return s.conn.Close()
}

// reader reads one JSON request per line.  A malformed line is answered
// with an error and skipped.
func (s *Session) reader() error {
	sc := bufio.NewScanner(s.conn)
	sc.Buffer(make([]byte, 0, 4096), maxMessageSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req api.Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError("", api.ErrCodeInvalidMessage, fmt.Sprintf("failed to parse request: %v", err))
			continue
		}
		if err := req.Validate(); err != nil {
			var apiErr *api.Error
			if errors.As(err, &apiErr) {
				s.sendError(req.ID, apiErr.Code, apiErr.Message)
			}
			continue
		}
		s.dispatch(&req)
	}
	if err := sc.Err(); err != nil {
		select {
		case <-s.done:
			return nil
		default:
		}
		return fmt.Errorf("read error: %w", err)
	}
	return nil
}

// writer sends outgoing responses and events.
func (s *Session) writer() {
	for resp := range s.outgoing {
		data, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("failed to encode response", "error", err)
			continue
		}
		if _, err := s.conn.Write(append(data, '\n')); err != nil {
			s.log.Error("failed to write response", "error", err)
			s.Close()
			// keep draining so senders never block on a dead connection
			for range s.outgoing {
			}
			return
		}
	}
}

// dispatch routes a request to the appropriate handler.
func (s *Session) dispatch(req *api.Request) {
	switch {
	case req.Subscribe != nil:
		s.handleSubscribe(req.ID, req.Subscribe)
	case req.Unsubscribe != nil:
		s.handleUnsubscribe(req.ID, req.Unsubscribe)
	case req.Resync != nil:
		s.handleResync(req.ID, req.Resync)
	}
}

func (s *Session) handleSubscribe(id string, req *api.SubscribeRequest) {
	q, err := CompileQuery(req.Query)
	if err != nil {
		s.sendAPIError(id, err)
		return
	}

	s.subMu.Lock()
	if _, exists := s.subs[req.Sub]; exists {
		s.subMu.Unlock()
		s.sendError(id, api.ErrCodeAlreadySubscribed, fmt.Sprintf("already subscribed as %q", req.Sub))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	pub := NewPublisher(&PublisherConfig{
		Sub:         req.Sub,
		Query:       q,
		Prefix:      req.Prefix,
		Store:       s.store,
		Hub:         s.hub,
		Pool:        s.pool,
		Metrics:     s.metrics,
		Log:         s.log,
		WatchBuffer: s.watchBuffer,
		Emit: func(ev *api.Event) bool {
			return s.sendCtx(ctx, api.NewEventResponse(ev))
		},
	})
	sub := &subscription{pub: pub, cancel: cancel}
	s.subs[req.Sub] = sub
	s.pubWG.Add(1)
	s.subMu.Unlock()

	s.log.Debug("subscribe", "sub", req.Sub, "query", req.Query, "prefix", req.Prefix)
	// the confirmation precedes the first event
	s.send(api.NewSubscribeResponse(id, req.Sub))

	go func() {
		defer s.pubWG.Done()
		err := pub.Run(ctx)
		s.subMu.Lock()
		if s.subs[req.Sub] == sub {
			delete(s.subs, req.Sub)
		}
		s.subMu.Unlock()
		cancel()
		if err != nil {
			s.log.Warn("subscription ended", "sub", req.Sub, "error", err)
			s.sendSubError(req.Sub, err)
		}
	}()
}

func (s *Session) handleUnsubscribe(id string, req *api.UnsubscribeRequest) {
	s.subMu.Lock()
	sub, exists := s.subs[req.Sub]
	if exists {
		delete(s.subs, req.Sub)
	}
	s.subMu.Unlock()

	if !exists {
		s.sendError(id, api.ErrCodeNotFound, fmt.Sprintf("not subscribed as %q", req.Sub))
		return
	}
	sub.cancel()
	s.send(api.NewUnsubscribeResponse(id, req.Sub))
}

func (s *Session) handleResync(id string, req *api.ResyncRequest) {
	s.subMu.Lock()
	sub, exists := s.subs[req.Sub]
	s.subMu.Unlock()

	if !exists {
		s.sendError(id, api.ErrCodeNotFound, fmt.Sprintf("not subscribed as %q", req.Sub))
		return
	}
	s.metrics.Resyncs.Inc()
	s.log.Info("resync", "sub", req.Sub)
	s.send(api.NewResyncResponse(id, req.Sub))
	sub.pub.Resync()
}

// cleanupSubscriptions stops all subscriptions on session close.
func (s *Session) cleanupSubscriptions() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for name, sub := range s.subs {
		sub.cancel()
		delete(s.subs, name)
	}
}

// SubscriptionCount returns the number of active subscriptions.
func (s *Session) SubscriptionCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// send queues a response for sending.
func (s *Session) send(resp *api.Response) bool {
	select {
	case s.outgoing <- resp:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) sendCtx(ctx context.Context, resp *api.Response) bool {
	select {
	case s.outgoing <- resp:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// sendError sends an error response.
func (s *Session) sendError(id, code, message string) {
	s.send(api.NewErrorResponse(id, code, message))
}

func (s *Session) sendAPIError(id string, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		s.sendError(id, apiErr.Code, apiErr.Message)
		return
	}
	s.sendError(id, api.ErrCodeInternal, err.Error())
}

// sendSubError reports the failure of a subscription.
func (s *Session) sendSubError(sub string, err error) {
	e := &api.Error{Code: api.ErrCodeInternal, Message: err.Error(), Sub: sub}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		e.Code = apiErr.Code
		e.Message = apiErr.Message
	}
	s.send(&api.Response{Error: e})
}
