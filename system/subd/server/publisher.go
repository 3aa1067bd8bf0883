package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
	"github.com/saulx/selva/go-selva/system/subd/api"
	"github.com/saulx/selva/go-selva/wire"
)

// Snapshotter provides the state queries are evaluated against.
type Snapshotter interface {
	Snapshot() (*ir.Value, int64)
}

// PublisherConfig contains configuration for creating a publisher.
type PublisherConfig struct {
	Sub     string
	Query   *Query
	Prefix  string
	Store   Snapshotter
	Hub     *WatchHub
	Pool    *Pool
	Metrics *Metrics
	Log     *slog.Logger

	// Emit delivers an event, returning false once the receiver is gone.
	Emit func(*api.Event) bool

	WatchBuffer int
}

// Publisher turns the commits of a store into the event stream of one
// subscription.  Its Run loop is the only goroutine touching its state,
// so events are produced and numbered strictly in order.
type Publisher struct {
	sub     string
	query   *Query
	store   Snapshotter
	hub     *WatchHub
	pool    *Pool
	metrics *Metrics
	log     *slog.Logger
	emit    func(*api.Event) bool
	watcher *Watcher
	resync  chan struct{}

	seq    uint64
	commit int64
	prev   *ir.Value
}

// NewPublisher creates a publisher and registers it with the hub, so no
// commit after this call is missed.  Run must follow.
func NewPublisher(cfg *PublisherConfig) *Publisher {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	bufSize := cfg.WatchBuffer
	if bufSize <= 0 {
		bufSize = 16
	}
	p := &Publisher{
		sub:     cfg.Sub,
		query:   cfg.Query,
		store:   cfg.Store,
		hub:     cfg.Hub,
		pool:    cfg.Pool,
		metrics: metrics,
		log:     log.With("sub", cfg.Sub),
		emit:    cfg.Emit,
		watcher: NewWatcher(cfg.Prefix, bufSize),
		resync:  make(chan struct{}, 1),
	}
	p.hub.Watch(p.watcher)
	return p
}

// Resync asks for a full event.  Requests made while one is pending
// are merged.
func (p *Publisher) Resync() {
	select {
	case p.resync <- struct{}{}:
	default:
	}
}

// Run sends the initial full event and then follows commits until ctx
// ends, the receiver goes away or the subscription fails.  A failed
// subscription returns an *api.Error.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.hub.Unwatch(p.watcher)
	p.metrics.Subscriptions.Inc()
	defer p.metrics.Subscriptions.Dec()

	if err := p.full(); err != nil {
		return p.stop(ctx, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.watcher.Failed:
			p.metrics.SlowConsumers.Inc()
			p.log.Warn("subscription failed (slow consumer)", "seq", p.seq)
			return api.NewError(api.ErrCodeSlowConsumer, fmt.Sprintf("subscription %q failed: slow consumer", p.sub))
		case <-p.resync:
			if err := p.full(); err != nil {
				return p.stop(ctx, err)
			}
		case n := <-p.watcher.Events:
			latest := n.Commit
			// coalesce: only the newest snapshot is diffed
		drain:
			for {
				select {
				case n := <-p.watcher.Events:
					latest = max(latest, n.Commit)
				default:
					break drain
				}
			}
			if latest <= p.commit {
				continue
			}
			if err := p.update(ctx); err != nil {
				return p.stop(ctx, err)
			}
		}
	}
}

var errGone = errors.New("receiver gone")

func (p *Publisher) stop(ctx context.Context, err error) error {
	if errors.Is(err, errGone) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Publisher) send(ev *api.Event) error {
	if !p.emit(ev) {
		return errGone
	}
	return nil
}

// full evaluates the query and sends the result as a full event.  A
// failing query ends the subscription here: there is no previous state
// to keep following.
func (p *Publisher) full() error {
	nodes, commit := p.store.Snapshot()
	v, err := p.query.Eval(nodes, commit)
	if err != nil {
		p.metrics.QueryErrors.Inc()
		return err
	}
	p.seq++
	p.commit = commit
	p.prev = v
	p.metrics.FullEvents.Inc()
	p.log.Debug("full event", "seq", p.seq, "commit", commit)
	return p.send(&api.Event{Sub: p.sub, Seq: p.seq, Commit: commit, Kind: api.EventFull, State: v})
}

// update re-evaluates the query and sends the change as a patch event.
// A query failing on a later commit is logged and the subscription keeps
// the previous state, waiting for a commit which fixes it.
func (p *Publisher) update(ctx context.Context) error {
	nodes, commit := p.store.Snapshot()
	p.commit = commit
	v, err := p.query.Eval(nodes, commit)
	if err != nil {
		p.metrics.QueryErrors.Inc()
		p.log.Warn("query failed", "commit", commit, "error", err)
		return nil
	}
	patch, err := p.pool.Diff(ctx, p.prev, v)
	if err != nil {
		return err
	}
	if libdiff.Unchanged(p.prev, patch) {
		p.prev = v
		return nil
	}
	d, err := wire.Marshal(patch)
	if err != nil {
		return api.NewError(api.ErrCodeInternal, fmt.Sprintf("encoding patch: %v", err))
	}
	p.seq++
	p.prev = v
	p.metrics.Patches.Inc()
	p.metrics.PatchBytes.Add(float64(len(d)))
	p.log.Debug("patch event", "seq", p.seq, "commit", commit, "bytes", len(d))
	return p.send(&api.Event{Sub: p.sub, Seq: p.seq, Commit: commit, Kind: api.EventPatch, Patch: d})
}
