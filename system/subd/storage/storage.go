package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/saulx/selva/go-selva/ir"
)

var (
	ErrNotFound = errors.New("node not found")
	ErrClosed   = errors.New("storage closed")
)

const (
	nodePrefix = 'n'
	metaPrefix = 'm'
)

var commitKey = []byte{metaPrefix, 'c'}

// CommitNotification describes a commit.
type CommitNotification struct {
	Commit int64
	IDs    []string // ids of the nodes written or deleted
}

// CommitNotifier is called after each commit, in commit order.  It is
// called with the storage's write lock held and must not write to the
// storage.
type CommitNotifier func(*CommitNotification)

type Options struct {
	// InMemory keeps the database on an in-memory filesystem.  The
	// directory argument of Open is then only a name.
	InMemory bool
	// FS overrides the filesystem, for reopening an in-memory database.
	FS     vfs.FS
	// NoSync skips syncing the write-ahead log on each commit.
	NoSync bool
	Log    *slog.Logger
}

type Storage struct {
	db  *pebble.DB
	log *slog.Logger

	wo *pebble.WriteOptions

	mu       sync.Mutex
	commit   int64
	snapshot *ir.Value
	notifier CommitNotifier
	closed   bool

	// readers take the snapshot without the write lock
	snapMu sync.RWMutex
}

// Open opens or creates the storage in dir.
func Open(dir string, opts *Options) (*Storage, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	pOpts := &pebble.Options{}
	switch {
	case opts.FS != nil:
		pOpts.FS = opts.FS
	case opts.InMemory:
		pOpts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, pOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %s: %w", dir, err)
	}
	s := &Storage{
		db:  db,
		log: log.With("component", "storage"),
		wo:  pebble.Sync,
	}
	if opts.NoSync {
		s.wo = pebble.NoSync
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info("opened storage", "dir", dir, "commit", s.commit, "nodes", len(s.snapshot.Fields))
	return s, nil
}

// load reads the commit number and every node into the snapshot.
func (s *Storage) load() error {
	d, closer, err := s.db.Get(commitKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read commit: %w", err)
	default:
		if len(d) != 8 {
			closer.Close()
			return fmt.Errorf("corrupt commit record of %d bytes", len(d))
		}
		s.commit = int64(binary.BigEndian.Uint64(d))
		closer.Close()
	}

	fields := map[string]*ir.Value{}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{nodePrefix},
		UpperBound: []byte{nodePrefix + 1},
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for valid := iter.First(); valid; valid = iter.Next() {
		id := string(iter.Key()[1:])
		v, err := ir.ParseJSON(iter.Value())
		if err != nil {
			return fmt.Errorf("failed to decode node %q: %w", id, err)
		}
		fields[id] = v
	}
	if err := iter.Error(); err != nil {
		return err
	}
	s.snapshot = &ir.Value{Type: ir.ObjectType, Fields: fields}
	return nil
}

func nodeKey(id string) []byte {
	k := make([]byte, 0, len(id)+1)
	k = append(k, nodePrefix)
	return append(k, id...)
}

func commitValue(c int64) []byte {
	var d [8]byte
	binary.BigEndian.PutUint64(d[:], uint64(c))
	return d[:]
}

// SetCommitNotifier sets the function called after each commit.
func (s *Storage) SetCommitNotifier(n CommitNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Put stores v as the node id and returns the commit number.
func (s *Storage) Put(id string, v *ir.Value) (int64, error) {
	if v == nil {
		v = ir.Null()
	}
	d, err := v.MarshalJSON()
	if err != nil {
		return 0, err
	}
	return s.write(id, v, d)
}

// Delete removes the node id.  Deleting a missing node is an error.
func (s *Storage) Delete(id string) (int64, error) {
	return s.write(id, nil, nil)
}

// write commits a put of v (encoded as d), or a delete if v is nil.
func (s *Storage) write(id string, v *ir.Value, d []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if _, ok := s.snapshot.Fields[id]; v == nil && !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	commit := s.commit + 1
	b := s.db.NewBatch()
	defer b.Close()
	var err error
	if v == nil {
		err = b.Delete(nodeKey(id), nil)
	} else {
		err = b.Set(nodeKey(id), d, nil)
	}
	if err != nil {
		return 0, err
	}
	if err := b.Set(commitKey, commitValue(commit), nil); err != nil {
		return 0, err
	}
	if err := b.Commit(s.wo); err != nil {
		return 0, fmt.Errorf("failed to commit %d: %w", commit, err)
	}

	// the previous snapshot may be held by readers, so build a new one
	fields := make(map[string]*ir.Value, len(s.snapshot.Fields)+1)
	maps.Copy(fields, s.snapshot.Fields)
	if v == nil {
		delete(fields, id)
	} else {
		fields[id] = v
	}
	s.snapMu.Lock()
	s.snapshot = &ir.Value{Type: ir.ObjectType, Fields: fields}
	s.commit = commit
	s.snapMu.Unlock()

	s.log.Debug("commit", "commit", commit, "id", id, "delete", v == nil)
	if s.notifier != nil {
		s.notifier(&CommitNotification{Commit: commit, IDs: []string{id}})
	}
	return commit, nil
}

// Get returns the node id.
func (s *Storage) Get(id string) (*ir.Value, error) {
	s.snapMu.RLock()
	v, ok := s.snapshot.Fields[id]
	s.snapMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return v, nil
}

// Snapshot returns the object of all nodes by id together with the
// commit it reflects.  The result must not be modified.
func (s *Storage) Snapshot() (*ir.Value, int64) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snapshot, s.commit
}

// CurrentCommit returns the number of the last commit, 0 for an empty
// storage.
func (s *Storage) CurrentCommit() int64 {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.commit
}

// Metrics exposes the underlying database metrics, for collectors.
func (s *Storage) Metrics() *pebble.Metrics {
	return s.db.Metrics()
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
