package block

// Chunker slides a window of a fixed number of lines over a resource.
//
// The size is a precondition for a whole analysis run: blocks chunked with
// different sizes are not comparable.
type Chunker struct {
	size int
}

// NewChunker creates a chunker with the given window size.
func NewChunker(size int) (*Chunker, error) {
	if size <= 0 {
		return nil, ErrInvalidBlockSize
	}
	return &Chunker{size: size}, nil
}

// Size returns the window size in lines.
func (c *Chunker) Size() int {
	return c.size
}

// Chunk emits one block per window position with step 1. Fewer lines than
// the window size yields no blocks.
func (c *Chunker) Chunk(resourceID string, lines []TokensLine) []Block {
	if len(lines) < c.size {
		return nil
	}

	blocks := make([]Block, 0, len(lines)-c.size+1)
	for i := 0; i+c.size <= len(lines); i++ {
		first, last := lines[i], lines[i+c.size-1]

		var h uint64
		for _, l := range lines[i : i+c.size] {
			h = h*HashBase + l.Hash
		}

		blocks = append(blocks, Block{
			ResourceID: resourceID,
			Index:      i,
			StartLine:  first.StartLine,
			EndLine:    last.EndLine,
			StartUnit:  first.StartUnit,
			EndUnit:    last.EndUnit,
			Hash:       Hash(h),
		})
	}
	return blocks
}
