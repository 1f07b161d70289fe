// Package gitstore is a pristine.Store backed by a git object database.
// Checksums are git blob ids, so texts are stored and addressed by libgit2
// directly and the store can share an existing repository's objects.
package gitstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/Sumatoshi-tech/treemerge/pkg/alg/lru"
	"github.com/Sumatoshi-tech/treemerge/pkg/gitlib"
	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

const (
	defaultCacheEntries = 256

	tracerName = "treemerge.gitlib"
)

// Store implements pristine.Store over a libgit2 object database. libgit2
// handles are not safe for concurrent use, so calls are serialized.
type Store struct {
	mu    sync.Mutex
	db    *gitlib.ObjectDB
	cache *lru.Cache[vcs.Checksum, []byte]
}

// Open opens or creates a bare repository at path.
func Open(path string) (*Store, error) {
	db, err := gitlib.OpenObjectDB(path)
	if err != nil {
		return nil, fmt.Errorf("open git pristine store: %w", err)
	}

	return New(db), nil
}

// New wraps an open object database. The store takes ownership of db.
func New(db *gitlib.ObjectDB) *Store {
	return &Store{
		db:    db,
		cache: lru.New(lru.WithMaxEntries[vcs.Checksum, []byte](defaultCacheEntries)),
	}
}

// Close frees the object database.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.Close()
}

// Install implements pristine.Store.
func (s *Store) Install(ctx context.Context, content []byte) (vcs.Checksum, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return vcs.Checksum{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.db.WriteBlob(content)
	if err != nil {
		return vcs.Checksum{}, fmt.Errorf("install pristine: %w", err)
	}

	return vcs.Checksum(hash), nil
}

// Has implements pristine.Store.
func (s *Store) Has(_ context.Context, checksum vcs.Checksum) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.db.HasBlob(gitlib.Hash(checksum))
	if err != nil {
		return false, fmt.Errorf("check pristine %s: %w", checksum, err)
	}

	return ok, nil
}

// Open implements pristine.Store.
func (s *Store) Open(ctx context.Context, checksum vcs.Checksum) (io.ReadCloser, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	if text, ok := s.cache.Get(checksum); ok {
		return io.NopCloser(bytes.NewReader(text)), nil
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "gitlib.lookup_blob")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	text, err := s.db.ReadBlob(gitlib.Hash(checksum))
	if err != nil {
		if errors.Is(err, gitlib.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", pristine.ErrNotFound, checksum)
		}

		return nil, fmt.Errorf("open pristine %s: %w", checksum, err)
	}

	s.cache.Put(checksum, text)

	return io.NopCloser(bytes.NewReader(text)), nil
}

// CacheHits returns the number of reads served from the text cache.
func (s *Store) CacheHits() int64 {
	return s.cache.Stats().Hits
}

// CacheMisses returns the number of reads that reached the object database.
func (s *Store) CacheMisses() int64 {
	return s.cache.Stats().Misses
}
