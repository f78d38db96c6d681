// Package memory provides an in-memory docstore.Store used by tests and by
// hermetic integration runs. Transactions buffer their writes and validate
// their read set at commit, so overlapping transactions on the same
// documents fail with docstore.ErrTxConflict instead of interleaving.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/memorylib/integrator/internal/docstore"
)

type key struct {
	col docstore.Collection
	id  string
}

type document struct {
	fields  docstore.Fields
	version uint64
}

// CommitHook runs after read-set validation and before writes are applied.
// A non-nil return aborts the commit with that error, leaving the store
// untouched. Used by tests to inject commit failures.
type CommitHook func(ctx context.Context) error

// Store is an in-memory document store.
type Store struct {
	mu         sync.Mutex
	docs       map[key]*document
	commitSeq  uint64
	clock      func() time.Time
	commitHook CommitHook
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to resolve server timestamps at commit.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[key]*document),
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCommitHook installs a commit hook. Pass nil to remove it.
func (s *Store) SetCommitHook(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = hook
}

// FailCommits makes the next n commits fail with err; later commits succeed.
func (s *Store) FailCommits(n int, err error) {
	remaining := n
	s.SetCommitHook(func(ctx context.Context) error {
		if remaining > 0 {
			remaining--
			return err
		}
		return nil
	})
}

// Seed stores a document directly, outside any transaction.
func (s *Store) Seed(col docstore.Collection, id string, fields docstore.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitSeq++
	s.docs[key{col, id}] = &document{
		fields:  docstore.CloneFields(fields),
		version: s.commitSeq,
	}
}

// Document returns a copy of a document's fields, outside any transaction.
func (s *Store) Document(col docstore.Collection, id string) (docstore.Fields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key{col, id}]
	if !ok {
		return nil, false
	}
	return docstore.CloneFields(doc.fields), true
}

// Count returns the number of documents in the collection.
func (s *Store) Count(_ context.Context, col docstore.Collection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.docs {
		if k.col == col {
			n++
		}
	}
	return n, nil
}

// RunTransaction executes fn with snapshot semantics and commits its
// buffered writes atomically. A document changed by a concurrent commit
// after fn read it fails the transaction with docstore.ErrTxConflict.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	tx := &memTx{
		store:  s,
		reads:  make(map[key]uint64),
		writes: make(map[key]*pendingWrite),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return s.commit(ctx, tx)
}

func (s *Store) commit(ctx context.Context, tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, seen := range tx.reads {
		var current uint64
		if doc, ok := s.docs[k]; ok {
			current = doc.version
		}
		if current != seen {
			return docstore.ErrTxConflict
		}
	}

	if s.commitHook != nil {
		if err := s.commitHook(ctx); err != nil {
			return err
		}
	}

	now := s.clock()
	s.commitSeq++
	for k, w := range tx.writes {
		if w.delete {
			delete(s.docs, k)
			continue
		}
		s.docs[k] = &document{
			fields:  docstore.ResolveServerTimestamps(w.fields, now),
			version: s.commitSeq,
		}
	}
	return nil
}

type pendingWrite struct {
	fields docstore.Fields
	delete bool
}

type memTx struct {
	store  *Store
	reads  map[key]uint64
	writes map[key]*pendingWrite
}

func (t *memTx) Get(_ context.Context, col docstore.Collection, id string) (docstore.Fields, error) {
	k := key{col, id}

	// Reads observe this transaction's own buffered writes.
	if w, ok := t.writes[k]; ok {
		if w.delete {
			return nil, docstore.ErrDocumentNotFound
		}
		return docstore.CloneFields(w.fields), nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	doc, ok := t.store.docs[k]
	if !ok {
		// Absence is part of the read set: version zero must still hold
		// at commit.
		t.reads[k] = 0
		return nil, docstore.ErrDocumentNotFound
	}
	t.reads[k] = doc.version
	return docstore.CloneFields(doc.fields), nil
}

func (t *memTx) Set(_ context.Context, col docstore.Collection, id string, fields docstore.Fields) error {
	t.writes[key{col, id}] = &pendingWrite{fields: docstore.CloneFields(fields)}
	return nil
}

func (t *memTx) Delete(_ context.Context, col docstore.Collection, id string) error {
	t.writes[key{col, id}] = &pendingWrite{delete: true}
	return nil
}
