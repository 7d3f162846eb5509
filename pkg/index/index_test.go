package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/panbanda/cpd/pkg/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blocksFor(resource string, hashes ...block.Hash) []block.Block {
	out := make([]block.Block, len(hashes))
	for i, h := range hashes {
		out[i] = block.Block{
			ResourceID: resource,
			Index:      i,
			StartLine:  i + 1,
			EndLine:    i + 2,
			StartUnit:  i*3 + 1,
			EndUnit:    i*3 + 6,
			Hash:       h,
		}
	}
	return out
}

func TestInsertResource_Lookups(t *testing.T) {
	idx := NewMemoryIndex()

	require.NoError(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1, 2, 3)))
	require.NoError(t, idx.InsertResource("b.go", 2, blocksFor("b.go", 2, 9)))

	got := idx.ByResourceID("a.go")
	require.Len(t, got, 3)
	for i, b := range got {
		assert.Equal(t, i, b.Index)
	}

	shared := idx.ByHash(2)
	require.Len(t, shared, 2)
	resources := []string{shared[0].ResourceID, shared[1].ResourceID}
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, resources)

	assert.Empty(t, idx.ByHash(42))
	assert.Empty(t, idx.ByResourceID("missing.go"))
	assert.Equal(t, 2, idx.ResourceCount())
	assert.Equal(t, 5, idx.BlockCount())
	assert.Equal(t, 2, idx.BlockSize())
}

func TestInsertResource_ReturnsCopies(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1)))

	got := idx.ByResourceID("a.go")
	got[0].Hash = 99

	assert.Equal(t, block.Hash(1), idx.ByResourceID("a.go")[0].Hash)
	assert.Empty(t, idx.ByHash(99))
}

func TestInsertResource_AllOrNothing(t *testing.T) {
	idx := NewMemoryIndex()

	bad := blocksFor("a.go", 1, 2, 3)
	bad[2].Index = 7

	err := idx.InsertResource("a.go", 2, bad)
	assert.ErrorIs(t, err, ErrInconsistentBlocks)
	assert.Equal(t, 0, idx.ResourceCount())
	assert.Empty(t, idx.ByHash(1), "no block of a rejected batch may be visible")
}

func TestInsertResource_Errors(t *testing.T) {
	t.Run("wrong resource", func(t *testing.T) {
		idx := NewMemoryIndex()
		err := idx.InsertResource("a.go", 2, blocksFor("b.go", 1))
		assert.ErrorIs(t, err, ErrInconsistentBlocks)
	})

	t.Run("inverted range", func(t *testing.T) {
		idx := NewMemoryIndex()
		bs := blocksFor("a.go", 1)
		bs[0].StartUnit = 10
		bs[0].EndUnit = 2
		assert.ErrorIs(t, idx.InsertResource("a.go", 2, bs), ErrInconsistentBlocks)
	})

	t.Run("duplicate resource", func(t *testing.T) {
		idx := NewMemoryIndex()
		require.NoError(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1)))
		assert.ErrorIs(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1)), ErrDuplicateResource)
	})

	t.Run("block size mismatch", func(t *testing.T) {
		idx := NewMemoryIndex()
		require.NoError(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1)))
		assert.ErrorIs(t, idx.InsertResource("b.go", 3, blocksFor("b.go", 1)), ErrBlockSizeMismatch)
	})

	t.Run("sealed", func(t *testing.T) {
		idx := NewMemoryIndex()
		idx.Seal()
		assert.ErrorIs(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1)), ErrSealed)
	})
}

func TestInsertResource_EmptyBatchCountsAsIndexed(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.InsertResource("tiny.go", 2, nil))

	assert.Equal(t, 1, idx.ResourceCount())
	assert.ErrorIs(t, idx.InsertResource("tiny.go", 2, nil), ErrDuplicateResource)
}

func TestClear(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.InsertResource("a.go", 2, blocksFor("a.go", 1, 2)))
	idx.Seal()
	require.True(t, idx.Sealed())

	idx.Clear()

	assert.False(t, idx.Sealed())
	assert.Equal(t, 0, idx.ResourceCount())
	assert.Equal(t, 0, idx.BlockCount())
	assert.Equal(t, 0, idx.BlockSize())
	assert.NoError(t, idx.InsertResource("a.go", 4, blocksFor("a.go", 1)))
}

func TestInsertResource_Concurrent(t *testing.T) {
	idx := NewMemoryIndex()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("f%02d.go", i)
			assert.NoError(t, idx.InsertResource(id, 2, blocksFor(id, 7, block.Hash(i+100))))
		}()
	}
	wg.Wait()
	idx.Seal()

	assert.Equal(t, 64, idx.ResourceCount())
	assert.Len(t, idx.ByHash(7), 64)
}
