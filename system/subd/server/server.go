package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Server represents the subd server.
type Server struct {
	Spec Spec

	// Hub carries commit notifications from the storage to publishers.
	Hub     *WatchHub
	Pool    *Pool
	Metrics *Metrics

	tcpListener *TCPListener
	metricsSrv  *http.Server
}

// New creates a new Server instance.
func New(spec *Spec) *Server {
	if spec.Log == nil {
		spec.Log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(),
		}))
	}
	if spec.Config == nil {
		spec.Config = DefaultConfig()
	}
	if spec.Registerer == nil {
		spec.Registerer = prometheus.DefaultRegisterer
	}
	metrics := NewMetrics(spec.Registerer)
	s := &Server{
		Spec:    *spec,
		Hub:     NewWatchHubWithTimeout(spec.Config.BroadcastTimeout),
		Pool:    NewPool(spec.Config.Workers, metrics),
		Metrics: metrics,
	}

	// Wire up commit notifications to the watch hub
	if spec.Storage != nil {
		spec.Storage.SetCommitNotifier(s.Hub.Broadcast)
	}
	return s
}

func slogLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewSession creates a session over conn served by s.
func (s *Server) NewSession(id string, conn io.ReadWriteCloser) *Session {
	return NewSession(id, conn, &SessionConfig{
		Store:          s.Spec.Storage,
		Hub:            s.Hub,
		Pool:           s.Pool,
		Metrics:        s.Metrics,
		Log:            s.Spec.Log,
		OutgoingBuffer: s.Spec.Config.OutgoingBuffer,
		WatchBuffer:    s.Spec.Config.WatchBuffer,
	})
}

// StartTCP starts the TCP listener on the given address.
// The listener runs in a separate goroutine.
func (s *Server) StartTCP(addr string) error {
	if s.tcpListener != nil {
		return fmt.Errorf("TCP listener already running")
	}
	listener, err := NewTCPListener(addr, s)
	if err != nil {
		return err
	}
	s.tcpListener = listener

	go func() {
		if err := listener.Serve(); err != nil {
			s.Spec.Log.Error("TCP listener error", "error", err)
		}
	}()
	return nil
}

// StopTCP stops the TCP listener.
func (s *Server) StopTCP() error {
	if s.tcpListener == nil {
		return nil
	}
	err := s.tcpListener.Close()
	s.tcpListener = nil
	return err
}

// TCPAddr returns the TCP listener's address, or "" if not running.
func (s *Server) TCPAddr() string {
	if s.tcpListener == nil {
		return ""
	}
	return s.tcpListener.Addr().String()
}

// StartMetrics serves /metrics on addr from the given gatherer.
func (s *Server) StartMetrics(addr string, g prometheus.Gatherer) (net.Addr, error) {
	if s.metricsSrv != nil {
		return nil, fmt.Errorf("metrics server already running")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(g))
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Spec.Log.Error("metrics server error", "error", err)
		}
	}()
	s.Spec.Log.Info("metrics server started", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Close stops the listeners and the diff pool.  The storage is left open.
func (s *Server) Close(ctx context.Context) error {
	err := s.StopTCP()
	if s.metricsSrv != nil {
		err = errors.Join(err, s.metricsSrv.Shutdown(ctx))
		s.metricsSrv = nil
	}
	s.Pool.Close()
	return err
}
