package server

import (
	"sync"
	"testing"
	"time"

	"github.com/saulx/selva/go-selva/system/subd/storage"
)

func commitOf(c int64, ids ...string) *storage.CommitNotification {
	return &storage.CommitNotification{Commit: c, IDs: ids}
}

func TestWatchHub_WatchUnwatch(t *testing.T) {
	hub := NewWatchHub()
	w1 := NewWatcher("user:", 10)
	w2 := NewWatcher("user:", 10)
	w3 := NewWatcher("", 10)
	for i, w := range []*Watcher{w1, w2, w3} {
		hub.Watch(w)
		if n := hub.WatcherCount(); n != i+1 {
			t.Errorf("expected %d watchers, got %d", i+1, n)
		}
	}
	hub.Unwatch(w1)
	hub.Unwatch(w1)
	if n := hub.WatcherCount(); n != 2 {
		t.Errorf("expected 2 watchers, got %d", n)
	}
	hub.Unwatch(w2)
	hub.Unwatch(w3)
	if n := hub.WatcherCount(); n != 0 {
		t.Errorf("expected 0 watchers, got %d", n)
	}
}

func TestWatchHub_BroadcastMatching(t *testing.T) {
	hub := NewWatchHub()
	users := NewWatcher("user:", 10)
	all := NewWatcher("", 10)
	hub.Watch(users)
	hub.Watch(all)
	defer hub.Unwatch(users)
	defer hub.Unwatch(all)

	hub.Broadcast(commitOf(1, "post:1"))
	hub.Broadcast(commitOf(2, "post:2", "user:9"))

	select {
	case n := <-users.Events:
		if n.Commit != 2 {
			t.Errorf("expected commit 2, got %d", n.Commit)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected to receive notification")
	}
	if len(users.Events) != 0 {
		t.Errorf("unexpected extra notifications")
	}
	if n := len(all.Events); n != 2 {
		t.Errorf("expected 2 notifications for the catch-all watcher, got %d", n)
	}
}

func TestWatchHub_SlowConsumerFails(t *testing.T) {
	hub := NewWatchHubWithTimeout(50 * time.Millisecond)
	w := NewWatcher("", 1)
	hub.Watch(w)

	hub.Broadcast(commitOf(1, "a"))

	done := make(chan bool)
	go func() {
		hub.Broadcast(commitOf(2, "a"))
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("broadcast should complete after timeout")
	}

	if !w.IsFailed() {
		t.Error("watcher should be failed after timeout")
	}
	if n := hub.WatcherCount(); n != 0 {
		t.Errorf("expected 0 watchers after failure, got %d", n)
	}
	// the failed watcher keeps what it got before failing
	if n := <-w.Events; n.Commit != 1 {
		t.Errorf("expected commit 1, got %d", n.Commit)
	}
}

func TestWatchHub_FastConsumerSucceeds(t *testing.T) {
	hub := NewWatchHubWithTimeout(50 * time.Millisecond)
	w := NewWatcher("", 1)
	hub.Watch(w)
	defer hub.Unwatch(w)

	for i := range 5 {
		hub.Broadcast(commitOf(int64(i), "x"))
		select {
		case n := <-w.Events:
			if n.Commit != int64(i) {
				t.Errorf("expected commit %d, got %d", i, n.Commit)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("expected to receive notification")
		}
	}
	if w.IsFailed() {
		t.Error("watcher should not be failed")
	}
}

func TestWatchHub_Concurrent(t *testing.T) {
	hub := NewWatchHub()
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				w := NewWatcher("t", 10)
				hub.Watch(w)
				hub.Unwatch(w)
			}
		})
		wg.Go(func() {
			for j := range 100 {
				hub.Broadcast(commitOf(int64(j), "t"))
			}
		})
	}
	wg.Wait()
	if n := hub.WatcherCount(); n != 0 {
		t.Errorf("expected 0 watchers after concurrent ops, got %d", n)
	}
}

func TestMatchesPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		ids    []string
		want   bool
	}{
		{"empty prefix matches all", "", []string{"anything"}, true},
		{"empty prefix matches no ids", "", nil, true},
		{"exact", "user:1", []string{"user:1"}, true},
		{"prefix", "user:", []string{"post:3", "user:1"}, true},
		{"no match", "user:", []string{"post:3"}, false},
		{"longer prefix", "user:12", []string{"user:1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesPrefix(tt.prefix, tt.ids); got != tt.want {
				t.Errorf("matchesPrefix(%q, %v) = %v, want %v", tt.prefix, tt.ids, got, tt.want)
			}
		})
	}
}
