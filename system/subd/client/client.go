package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/api"
)

var ErrClosed = errors.New("client closed")

// Update is the state of a subscription after an event.
type Update struct {
	Sub    string
	Seq    uint64
	Commit int64
	Value  *ir.Value
}

type Options struct {
	Log *slog.Logger
	// UpdateBuffer is the capacity of the Updates channel.
	UpdateBuffer int
}

// Client follows subscriptions over one connection.  Updates must be
// read, otherwise the client stops reading from the connection.
type Client struct {
	conn  io.ReadWriteCloser
	cache *Cache
	log   *slog.Logger

	writeMu sync.Mutex
	reqSeq  atomic.Int64

	mu        sync.Mutex
	pending   map[string]chan *api.Response
	resyncing map[string]bool

	updates chan Update
	errs    chan *api.Error
	done    chan struct{}
	once    sync.Once
	readErr error
}

// Dial connects to a subd server.
func Dial(ctx context.Context, addr string, opts *Options) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return New(conn, opts), nil
}

// New runs a client over conn.
func New(conn io.ReadWriteCloser, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	bufSize := opts.UpdateBuffer
	if bufSize <= 0 {
		bufSize = 16
	}
	c := &Client{
		conn:      conn,
		cache:     NewCache(log),
		log:       log,
		pending:   make(map[string]chan *api.Response),
		resyncing: make(map[string]bool),
		updates:   make(chan Update, bufSize),
		errs:      make(chan *api.Error, bufSize),
		done:      make(chan struct{}),
	}
	go c.reader()
	return c
}

// Updates delivers the state of every subscription after each event.
// It is closed when the connection ends.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// Errors delivers failures of subscriptions; a failed subscription has
// ended.  Errors are dropped when nobody reads them.
func (c *Client) Errors() <-chan *api.Error {
	return c.errs
}

// Cache returns the client's cache of subscription states.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Subscribe starts the subscription sub and waits for the server to
// accept it.  Its states arrive on Updates.
func (c *Client) Subscribe(ctx context.Context, sub, query string) error {
	return c.SubscribeRequest(ctx, &api.SubscribeRequest{Sub: sub, Query: query})
}

func (c *Client) SubscribeRequest(ctx context.Context, req *api.SubscribeRequest) error {
	_, err := c.roundTrip(ctx, &api.Request{Subscribe: req})
	return err
}

func (c *Client) Unsubscribe(ctx context.Context, sub string) error {
	_, err := c.roundTrip(ctx, &api.Request{Unsubscribe: &api.UnsubscribeRequest{Sub: sub}})
	c.cache.Drop(sub)
	return err
}

// Resync asks for the full state of sub.
func (c *Client) Resync(ctx context.Context, sub string) error {
	c.setResyncing(sub, true)
	_, err := c.roundTrip(ctx, &api.Request{Resync: &api.ResyncRequest{Sub: sub}})
	return err
}

func (c *Client) roundTrip(ctx context.Context, req *api.Request) (*api.Response, error) {
	req.ID = strconv.FormatInt(c.reqSeq.Add(1), 10)
	reply := make(chan *api.Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return nil, err
	}
	select {
	case resp := <-reply:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) write(req *api.Request) error {
	d, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}
	if _, err := c.conn.Write(append(d, '\n')); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, c.readErr)
	}
	return ErrClosed
}

func (c *Client) reader() {
	defer close(c.updates)
	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for sc.Scan() {
		var resp api.Response
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			c.log.Error("failed to decode response", "error", err)
			continue
		}
		c.handle(&resp)
	}
	c.mu.Lock()
	c.readErr = sc.Err()
	c.mu.Unlock()
	c.shutdown()
}

func (c *Client) handle(resp *api.Response) {
	if resp.ID != "" {
		c.mu.Lock()
		reply, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if ok {
			reply <- resp
			return
		}
	}
	switch {
	case resp.Event != nil:
		c.handleEvent(resp.Event)
	case resp.Error != nil && resp.Error.Sub != "":
		c.cache.Drop(resp.Error.Sub)
		c.setResyncing(resp.Error.Sub, false)
		select {
		case c.errs <- resp.Error:
		default:
			c.log.Warn("subscription failed", "sub", resp.Error.Sub, "error", resp.Error)
		}
	case resp.Error != nil:
		c.log.Error("server error", "error", resp.Error)
	}
}

func (c *Client) handleEvent(ev *api.Event) {
	if ev.Kind == api.EventFull {
		c.setResyncing(ev.Sub, false)
	} else if c.isResyncing(ev.Sub) {
		// patches against the dropped state; the full event follows
		return
	}
	v, err := c.cache.Apply(ev)
	if errors.Is(err, ErrResync) {
		c.setResyncing(ev.Sub, true)
		go func() {
			if err := c.write(&api.Request{Resync: &api.ResyncRequest{Sub: ev.Sub}}); err != nil {
				c.log.Warn("failed to request resync", "sub", ev.Sub, "error", err)
			}
		}()
		return
	}
	if err != nil {
		c.log.Error("dropping event", "sub", ev.Sub, "seq", ev.Seq, "error", err)
		return
	}
	select {
	case c.updates <- Update{Sub: ev.Sub, Seq: ev.Seq, Commit: ev.Commit, Value: v}:
	case <-c.done:
	}
}

func (c *Client) setResyncing(sub string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.resyncing[sub] = true
	} else {
		delete(c.resyncing, sub)
	}
}

func (c *Client) isResyncing(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resyncing[sub]
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Close closes the connection.  Updates is closed once the reader has
// stopped.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}
