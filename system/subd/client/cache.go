package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	selva "github.com/saulx/selva/go-selva"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/api"
	"github.com/saulx/selva/go-selva/wire"
)

// ErrResync is wrapped by every error which leaves a subscription without
// a usable state.  The state must be fetched again in full.
var ErrResync = errors.New("resync required")

type entry struct {
	seq    uint64
	commit int64
	value  *ir.Value
}

// Cache holds the last known state of subscriptions.  It is safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     *slog.Logger
}

func NewCache(log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{entries: make(map[string]*entry), log: log}
}

// Apply folds ev into the cache and returns the new state of its
// subscription.  A full event replaces the state.  A patch event must
// carry the next sequence number and apply cleanly; otherwise the entry
// is dropped and an error wrapping ErrResync is returned.  The previous
// state is never modified.
func (c *Cache) Apply(ev *api.Event) (*ir.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case api.EventFull:
		v := ev.State
		if v == nil {
			v = ir.Null()
		}
		c.entries[ev.Sub] = &entry{seq: ev.Seq, commit: ev.Commit, value: v}
		return v, nil
	case api.EventPatch:
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	e, ok := c.entries[ev.Sub]
	if !ok {
		return nil, c.desync(ev, fmt.Errorf("%w: no state for %q", ErrResync, ev.Sub))
	}
	if ev.Seq != e.seq+1 {
		return nil, c.desync(ev, fmt.Errorf("%w: expected seq %d, got %d", ErrResync, e.seq+1, ev.Seq))
	}
	p, err := wire.Unmarshal(ev.Patch)
	if err != nil {
		return nil, c.desync(ev, fmt.Errorf("%w: %w", ErrResync, err))
	}
	v, err := selva.Apply(e.value, p)
	if err != nil {
		return nil, c.desync(ev, fmt.Errorf("%w: %w", ErrResync, err))
	}
	c.entries[ev.Sub] = &entry{seq: ev.Seq, commit: ev.Commit, value: v}
	return v, nil
}

func (c *Cache) desync(ev *api.Event, err error) error {
	delete(c.entries, ev.Sub)
	c.log.Warn("subscription desynchronized", "sub", ev.Sub, "seq", ev.Seq, "commit", ev.Commit, "error", err)
	return err
}

// Get returns the cached state of sub and its sequence number.
func (c *Cache) Get(sub string) (*ir.Value, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sub]
	if !ok {
		return nil, 0, false
	}
	return e.value, e.seq, true
}

func (c *Cache) Drop(sub string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sub)
}
