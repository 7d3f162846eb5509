// Package index stores the blocks of every resource in an analysis run and
// answers lookups by resource and by content hash.
package index

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panbanda/cpd/pkg/block"
)

var (
	// ErrSealed is returned when inserting after Seal.
	ErrSealed = errors.New("index: sealed, indexing is complete")
	// ErrDuplicateResource is returned when a resource is inserted twice in one run.
	ErrDuplicateResource = errors.New("index: resource already indexed")
	// ErrInconsistentBlocks is returned for a batch that breaks chunk order.
	ErrInconsistentBlocks = errors.New("index: inconsistent block batch")
	// ErrBlockSizeMismatch is returned when a batch was chunked with another window size.
	ErrBlockSizeMismatch = errors.New("index: block size differs from this run")
)

// CloneIndex is the store shared by all resources of a run.
//
// Writers call InsertResource concurrently, then Seal marks indexing as
// complete. Detection only reads a sealed index. Clear resets the index at a
// run boundary.
type CloneIndex interface {
	InsertResource(resourceID string, blockSize int, blocks []block.Block) error
	ByResourceID(resourceID string) []block.Block
	ByHash(h block.Hash) []block.Block
	Seal()
	Sealed() bool
	Clear()
	ResourceCount() int
	BlockCount() int
}

// MemoryIndex is an in-memory CloneIndex. Inserts are serialized by a
// single lock; once sealed the maps are immutable and lookups skip locking.
type MemoryIndex struct {
	mu         sync.RWMutex
	byResource map[string][]block.Block
	byHash     map[block.Hash][]block.Block
	blockSize  int
	blocks     int
	sealed     atomic.Bool
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byResource: make(map[string][]block.Block),
		byHash:     make(map[block.Hash][]block.Block),
	}
}

// InsertResource adds every block of one resource or none of them. The
// batch must be in chunk order, with Index counting up from 0 and
// non-decreasing StartLine.
//
// A resource with zero blocks is recorded so that it counts as indexed.
func (m *MemoryIndex) InsertResource(resourceID string, blockSize int, blocks []block.Block) error {
	if err := validateBatch(resourceID, blocks); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed.Load() {
		return ErrSealed
	}
	if _, ok := m.byResource[resourceID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, resourceID)
	}
	if m.blockSize == 0 {
		m.blockSize = blockSize
	} else if blockSize != m.blockSize {
		return fmt.Errorf("%w: got %d, run uses %d", ErrBlockSizeMismatch, blockSize, m.blockSize)
	}

	owned := make([]block.Block, len(blocks))
	copy(owned, blocks)
	m.byResource[resourceID] = owned
	for _, b := range owned {
		m.byHash[b.Hash] = append(m.byHash[b.Hash], b)
	}
	m.blocks += len(owned)
	return nil
}

func validateBatch(resourceID string, blocks []block.Block) error {
	for i, b := range blocks {
		if b.ResourceID != resourceID {
			return fmt.Errorf("%w: block %d belongs to %q, not %q", ErrInconsistentBlocks, i, b.ResourceID, resourceID)
		}
		if b.Index != i {
			return fmt.Errorf("%w: block %d has index %d", ErrInconsistentBlocks, i, b.Index)
		}
		if b.StartUnit > b.EndUnit || b.StartLine > b.EndLine {
			return fmt.Errorf("%w: block %d has inverted range", ErrInconsistentBlocks, i)
		}
		if i > 0 && b.StartLine < blocks[i-1].StartLine {
			return fmt.Errorf("%w: block %d starts before block %d", ErrInconsistentBlocks, i, i-1)
		}
	}
	return nil
}

// ByResourceID returns a copy of the resource's blocks in chunk order.
func (m *MemoryIndex) ByResourceID(resourceID string) []block.Block {
	if m.sealed.Load() {
		return clone(m.byResource[resourceID])
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.byResource[resourceID])
}

// ByHash returns a copy of every block with hash h.
func (m *MemoryIndex) ByHash(h block.Hash) []block.Block {
	if m.sealed.Load() {
		return clone(m.byHash[h])
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.byHash[h])
}

// Seal marks indexing as complete. Later inserts fail with ErrSealed. It
// must not race with Clear.
func (m *MemoryIndex) Seal() {
	m.mu.Lock()
	m.sealed.Store(true)
	m.mu.Unlock()
}

// Sealed reports whether Seal was called since the last Clear.
func (m *MemoryIndex) Sealed() bool {
	return m.sealed.Load()
}

// Clear empties and unseals the index.
func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byResource = make(map[string][]block.Block)
	m.byHash = make(map[block.Hash][]block.Block)
	m.blockSize = 0
	m.blocks = 0
	m.sealed.Store(false)
}

// ResourceCount returns the number of indexed resources.
func (m *MemoryIndex) ResourceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byResource)
}

// BlockCount returns the total number of indexed blocks.
func (m *MemoryIndex) BlockCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blocks
}

// BlockSize returns the window size of this run, or 0 before the first insert.
func (m *MemoryIndex) BlockSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blockSize
}

func clone(blocks []block.Block) []block.Block {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]block.Block, len(blocks))
	copy(out, blocks)
	return out
}
