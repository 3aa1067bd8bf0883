package server

import (
	"strings"
	"sync"
	"time"

	"github.com/saulx/selva/go-selva/system/subd/storage"
)

// DefaultBroadcastTimeout is the default timeout for sending commit
// notifications to watchers.  If a watcher doesn't read within this time,
// the watch is failed.
const DefaultBroadcastTimeout = 5 * time.Second

// WatchHub fans commit notifications out to watchers.  It is safe for
// concurrent use from multiple sessions.
type WatchHub struct {
	mu               sync.RWMutex
	watchers         map[string]map[*Watcher]struct{} // prefix -> set of watchers
	broadcastTimeout time.Duration
}

// Watcher receives the commits touching nodes whose id starts with
// Prefix.  If the watcher can't keep up (Events blocks for longer than
// the broadcast timeout), the watch is failed and Failed is closed.
type Watcher struct {
	Prefix string
	Events chan *storage.CommitNotification
	Failed chan struct{}

	failOnce sync.Once
}

// NewWatchHub creates a new WatchHub instance with default timeout.
func NewWatchHub() *WatchHub {
	return NewWatchHubWithTimeout(DefaultBroadcastTimeout)
}

func NewWatchHubWithTimeout(timeout time.Duration) *WatchHub {
	return &WatchHub{
		watchers:         make(map[string]map[*Watcher]struct{}),
		broadcastTimeout: timeout,
	}
}

// NewWatcher creates a new Watcher with a buffered events channel.
func NewWatcher(prefix string, bufferSize int) *Watcher {
	return &Watcher{
		Prefix: prefix,
		Events: make(chan *storage.CommitNotification, bufferSize),
		Failed: make(chan struct{}),
	}
}

// Watch registers w.  The caller must keep reading w.Events and call
// Unwatch when done.
func (h *WatchHub) Watch(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchers[w.Prefix] == nil {
		h.watchers[w.Prefix] = make(map[*Watcher]struct{})
	}
	h.watchers[w.Prefix][w] = struct{}{}
}

// Unwatch removes w.  After unwatching, no more events will be sent to
// w.Events.
func (h *WatchHub) Unwatch(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(w)
}

func (h *WatchHub) remove(w *Watcher) {
	if ws, ok := h.watchers[w.Prefix]; ok {
		delete(ws, w)
		if len(ws) == 0 {
			delete(h.watchers, w.Prefix)
		}
	}
}

// Broadcast sends a commit notification to all matching watchers.
//
// If a watcher's channel blocks for longer than the broadcast timeout,
// the watch is failed and the watcher is removed.
//
// Broadcast is meant to be the storage's commit notifier:
//
//	storage.SetCommitNotifier(hub.Broadcast)
func (h *WatchHub) Broadcast(n *storage.CommitNotification) {
	h.mu.RLock()
	var targets []*Watcher
	for prefix, ws := range h.watchers {
		if !matchesPrefix(prefix, n.IDs) {
			continue
		}
		for w := range ws {
			targets = append(targets, w)
		}
	}
	h.mu.RUnlock()

	var failed []*Watcher
	for _, w := range targets {
		select {
		case <-w.Failed:
			continue
		default:
		}

		select {
		case w.Events <- n:
		case <-time.After(h.broadcastTimeout):
			w.fail()
			failed = append(failed, w)
		case <-w.Failed:
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, w := range failed {
			h.remove(w)
		}
		h.mu.Unlock()
	}
}

// WatcherCount returns the total number of active watchers.
func (h *WatchHub) WatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, ws := range h.watchers {
		count += len(ws)
	}
	return count
}

func matchesPrefix(prefix string, ids []string) bool {
	if prefix == "" {
		return true
	}
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func (w *Watcher) fail() {
	w.failOnce.Do(func() {
		close(w.Failed)
	})
}

// IsFailed returns true if the watch has failed (slow consumer).
func (w *Watcher) IsFailed() bool {
	select {
	case <-w.Failed:
		return true
	default:
		return false
	}
}
