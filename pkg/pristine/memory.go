package pristine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/treemerge/pkg/alg/lru"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// defaultCacheBytes bounds the decompressed-text cache of a Memory store.
const defaultCacheBytes = 4 << 20

// Memory is an in-memory Store. Texts are kept lz4-compressed; recently
// read texts are cached decompressed.
type Memory struct {
	mu     sync.RWMutex
	blocks map[vcs.Checksum]block
	stored int64
	cache  *lru.Cache[vcs.Checksum, []byte]
}

// block is one stored text. Incompressible texts are kept as is.
type block struct {
	data       []byte
	size       int
	compressed bool
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[vcs.Checksum]block),
		cache: lru.New(lru.WithMaxBytes[vcs.Checksum](defaultCacheBytes, func(b []byte) int64 {
			return int64(len(b))
		})),
	}
}

// Install implements Store.
func (m *Memory) Install(ctx context.Context, content []byte) (vcs.Checksum, error) {
	sum := vcs.ContentChecksum(content)

	return sum, m.Put(ctx, sum, content)
}

// Put stores content under checksum without hashing it. Stores must only
// be fed matching pairs; Put exists so tests can plant corrupted texts.
func (m *Memory) Put(_ context.Context, checksum vcs.Checksum, content []byte) error {
	blk, err := compress(content)
	if err != nil {
		return fmt.Errorf("compress pristine %s: %w", checksum, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.blocks[checksum]; ok {
		m.stored -= int64(len(old.data))
	}

	m.blocks[checksum] = blk
	m.stored += int64(len(blk.data))
	m.cache.Put(checksum, bytes.Clone(content))

	return nil
}

// Remove drops the content stored under checksum.
func (m *Memory) Remove(checksum vcs.Checksum) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.blocks[checksum]; ok {
		m.stored -= int64(len(old.data))
		delete(m.blocks, checksum)
	}

	m.cache.Clear()
}

// Has implements Store.
func (m *Memory) Has(_ context.Context, checksum vcs.Checksum) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blocks[checksum]

	return ok, nil
}

// Open implements Store.
func (m *Memory) Open(ctx context.Context, checksum vcs.Checksum) (io.ReadCloser, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	blk, ok := m.blocks[checksum]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, checksum)
	}

	if text, hit := m.cache.Get(checksum); hit {
		return io.NopCloser(bytes.NewReader(text)), nil
	}

	text, err := decompress(blk)
	if err != nil {
		return nil, fmt.Errorf("decompress pristine %s: %w", checksum, err)
	}

	m.cache.Put(checksum, text)

	return io.NopCloser(bytes.NewReader(text)), nil
}

// Len returns the number of stored texts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blocks)
}

// CompressedBytes returns the total size of the stored compressed blocks.
func (m *Memory) CompressedBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stored
}

func compress(content []byte) (block, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(content)))

	written, err := lz4.CompressBlock(content, buf, nil)
	if err != nil {
		return block{}, err
	}

	if written == 0 || written >= len(content) {
		return block{data: bytes.Clone(content), size: len(content)}, nil
	}

	return block{data: buf[:written], size: len(content), compressed: true}, nil
}

func decompress(blk block) ([]byte, error) {
	if !blk.compressed {
		return bytes.Clone(blk.data), nil
	}

	out := make([]byte, blk.size)

	n, err := lz4.UncompressBlock(blk.data, out)
	if err != nil {
		return nil, err
	}

	return out[:n], nil
}
