package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/api"
	"github.com/saulx/selva/go-selva/system/subd/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Storage, *prometheus.Registry) {
	t.Helper()
	st, err := storage.Open("test", &storage.Options{InMemory: true, NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.BroadcastTimeout = time.Second
	s := New(&Spec{
		Config:     cfg,
		Storage:    st,
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer: reg,
	})
	t.Cleanup(func() {
		s.Close(context.Background())
		st.Close()
	})
	return s, st, reg
}

func TestTCPSession(t *testing.T) {
	s, st, _ := newTestServer(t)
	if err := s.StartTCP("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	if err := s.StartTCP("127.0.0.1:0"); err == nil {
		t.Error("expected an error starting twice")
	}
	st.Put("user:1", ir.FromString("bo"))

	conn, err := net.Dial("tcp", s.TCPAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	dec := json.NewDecoder(bufio.NewReader(conn))
	next := func() *api.Response {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var r api.Response
		if err := dec.Decode(&r); err != nil {
			t.Fatal(err)
		}
		return &r
	}

	req, _ := json.Marshal(&api.Request{Subscribe: &api.SubscribeRequest{Sub: "u", Query: `sort(filter(keys(nodes), hasPrefix(#, "user:")))`, Prefix: "user:"}})
	conn.Write(append(req, '\n'))
	if r := next(); r.Result == nil || r.Result.Subscribed != "u" {
		t.Fatalf("got %+v", r)
	}
	if r := next(); r.Event == nil || !ir.Equal(r.Event.State, ir.FromSlice([]*ir.Value{ir.FromString("user:1")})) {
		t.Fatalf("got %+v", r)
	}
	st.Put("post:1", ir.Null())
	st.Put("user:2", ir.Null())
	r := next()
	if r.Event == nil || r.Event.Commit != 3 || string(r.Event.Patch) != `[3,[2,[1,0,1],[0,"user:2"]]]` {
		t.Fatalf("got %+v", r)
	}

	if err := s.StopTCP(); err != nil {
		t.Fatal(err)
	}
	if s.TCPAddr() != "" {
		t.Error("listener still reported after stop")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var rest api.Response
	if err := dec.Decode(&rest); err == nil {
		t.Errorf("expected the connection to be closed, got %+v", rest)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, reg := newTestServer(t)
	addr, err := s.StartMetrics("127.0.0.1:0", reg)
	if err != nil {
		t.Fatal(err)
	}
	s.Metrics.Patches.Add(3)
	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "subd_publisher_patches_total 3") {
		t.Errorf("metrics output lacks the patch counter:\n%s", body)
	}
}

func waitSessions(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.tcpListener.SessionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("have %d sessions, want %d", s.tcpListener.SessionCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTCPSessionLimit(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Spec.Config.MaxSessions = 1
	if err := s.StartTCP("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}

	first, err := net.Dial("tcp", s.TCPAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	waitSessions(t, s, 1)

	second, err := net.Dial("tcp", s.TCPAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	dec := json.NewDecoder(second)
	var r api.Response
	if err := dec.Decode(&r); err != nil {
		t.Fatal(err)
	}
	if r.Error == nil || r.Error.Code != api.ErrCodeUnavailable {
		t.Fatalf("got %+v", r)
	}
	if err := dec.Decode(&r); err == nil {
		t.Error("rejected connection left open")
	}

	req, _ := json.Marshal(api.NewSubscribeRequest("1", "all", "keys(nodes)"))
	first.Write(append(req, '\n'))
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ok api.Response
	if err := json.NewDecoder(first).Decode(&ok); err != nil {
		t.Fatal(err)
	}
	if ok.ID != "1" || ok.Result == nil || ok.Result.Subscribed != "all" {
		t.Errorf("got %+v", ok)
	}

	if n := testutil.ToFloat64(s.Metrics.RejectedSessions); n != 1 {
		t.Errorf("rejected sessions = %v, want 1", n)
	}
	if n := testutil.ToFloat64(s.Metrics.Sessions); n != 1 {
		t.Errorf("sessions = %v, want 1", n)
	}
	first.Close()
	waitSessions(t, s, 0)
}
