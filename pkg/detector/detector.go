// Package detector finds maximal duplicated block sequences of a resource
// against a sealed clone index.
package detector

import (
	"fmt"
	"sort"

	"github.com/panbanda/cpd/pkg/block"
	"github.com/panbanda/cpd/pkg/index"
)

// Detector holds detection settings. It is stateless between calls and safe
// for concurrent use.
type Detector struct {
	minTokens int
}

// Option is a functional option for configuring Detector.
type Option func(*Detector)

// WithMinTokens sets the minimum clone length in tokens. Shorter groups are
// not reported.
func WithMinTokens(n int) Option {
	return func(d *Detector) {
		d.minTokens = n
	}
}

// New creates a detector.
func New(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// member is one occurrence taking part in a chain: the resource and the
// block index where its copy of the chain starts.
type member struct {
	resource string
	start    int
	// end is the last target index the copy still matches.
	end int
	// left is set when the copy and the target share their preceding block.
	left bool
}

// position is a block in a resource.
type position struct {
	resource string
	index    int
}

// diagonal is a fixed alignment of a resource's blocks against the target:
// block k pairs with target block k-offset.
type diagonal struct {
	resource string
	offset   int
}

// resolver serves block lookups by position, loading each resource's blocks
// from the index at most once per Detect call. It also remembers where each
// run of matching blocks along a diagonal ends, so every run is walked once.
type resolver struct {
	idx     index.CloneIndex
	target  []block.Block
	blocks  map[string][]block.Block
	runEnds map[diagonal]int
}

func (r *resolver) at(resource string, i int) (block.Block, bool) {
	bs, ok := r.blocks[resource]
	if !ok {
		bs = r.idx.ByResourceID(resource)
		checkBlocks(resource, bs)
		r.blocks[resource] = bs
	}
	if i < 0 || i >= len(bs) {
		return block.Block{}, false
	}
	return bs[i], true
}

// member pairs target block i with block start of resource, which has the
// same hash. A copy that extends left continues a run found at i-1 and takes
// its end from there.
func (r *resolver) member(i int, resource string, start int) member {
	m := member{resource: resource, start: start}
	d := diagonal{resource: resource, offset: start - i}
	if i > 0 {
		prev, ok := r.at(resource, start-1)
		m.left = ok && prev.Hash == r.target[i-1].Hash
	}
	if end, ok := r.runEnds[d]; ok && m.left {
		m.end = end
		return m
	}

	end := i
	for end+1 < len(r.target) {
		b, ok := r.at(resource, start+end+1-i)
		if !ok || b.Hash != r.target[end+1].Hash {
			break
		}
		end++
	}
	r.runEnds[d] = end
	m.end = end
	return m
}

func allLeft(members []member) bool {
	for _, m := range members {
		if !m.left {
			return false
		}
	}
	return true
}

// Detect reports the duplicates of target, the blocks of one resource in
// chunk order, against every resource in idx including itself.
//
// An empty target yields no groups. The index must be sealed.
func (d *Detector) Detect(idx index.CloneIndex, target []block.Block) ([]CloneGroup, error) {
	if len(target) == 0 {
		return nil, nil
	}
	if !idx.Sealed() {
		return nil, ErrNotSealed
	}

	origin := target[0].ResourceID
	checkBlocks(origin, target)

	r := &resolver{
		idx:     idx,
		target:  target,
		blocks:  map[string][]block.Block{origin: target},
		runEnds: make(map[diagonal]int),
	}

	var groups []CloneGroup
	for i := range target {
		// members[0] is the target's own copy of the chain
		members := []member{{resource: origin, start: i, end: len(target) - 1, left: i > 0}}
		for _, c := range idx.ByHash(target[i].Hash) {
			// earlier copies within the target were chained from their own
			// position, with this one among their members
			if c.ResourceID == origin && c.Index <= i {
				continue
			}
			members = append(members, r.member(i, c.ResourceID, c.Index))
		}
		if len(members) < 2 || allLeft(members) {
			continue
		}
		groups = r.chain(groups, origin, i, members)
	}

	groups = filterContained(groups)
	groups = filterShort(groups, d.minTokens)
	sortGroups(groups)
	return groups, nil
}

// chain appends the groups of the chain starting at target block i: one
// each time some copies stop matching while at least two continue, and a
// last one when fewer than two remain. A group is skipped when the chain
// one block earlier covers it, or when every stopping copy lies inside a
// continuing copy that starts one block before it.
func (r *resolver) chain(groups []CloneGroup, origin string, i int, members []member) []CloneGroup {
	sort.SliceStable(members, func(a, b int) bool {
		return members[a].end > members[b].end
	})
	ends := make(map[position]int, len(members))
	for _, m := range members {
		ends[position{m.resource, m.start}] = m.end
	}

	for n := len(members); n >= 2; {
		set := members[:n]
		if allLeft(set) {
			break
		}
		e := set[n-1].end
		k := n - 1
		for k > 0 && set[k-1].end == e {
			k--
		}
		if k < 2 || !coveredByPredecessor(set[k:], ends, e) {
			groups = append(groups, r.group(origin, i, set, e-i))
		}
		n = k
	}
	return groups
}

// coveredByPredecessor reports whether every copy in stopped, which all end
// at e, has a copy one block before it in the same resource that runs past e.
func coveredByPredecessor(stopped []member, ends map[position]int, e int) bool {
	for _, m := range stopped {
		end, ok := ends[position{m.resource, m.start - 1}]
		if !ok || end <= e {
			return false
		}
	}
	return true
}

// group turns the chain starting at target block i and spanning span+1
// blocks into a CloneGroup. The origin is the earliest part in the origin
// resource.
func (r *resolver) group(origin string, i int, members []member, span int) CloneGroup {
	parts := make([]ClonePart, 0, len(members))
	for _, m := range members {
		first, ok1 := r.at(m.resource, m.start)
		last, ok2 := r.at(m.resource, m.start+span)
		if !ok1 || !ok2 {
			panic(&InvariantError{ResourceID: m.resource, Reason: fmt.Sprintf("chain leaves the resource at block %d", m.start+span)})
		}
		parts = append(parts, ClonePart{
			ResourceID: m.resource,
			UnitStart:  first.StartUnit,
			StartLine:  first.StartLine,
			EndLine:    last.EndLine,
		})
	}

	length := r.target[i+span].EndUnit - r.target[i].StartUnit + 1

	sortParts(parts)
	oi := 0
	for k, p := range parts {
		if p.ResourceID == origin {
			oi = k
			break
		}
	}

	others := make([]ClonePart, 0, len(parts)-1)
	others = append(others, parts[:oi]...)
	others = append(others, parts[oi+1:]...)
	return CloneGroup{Origin: parts[oi], Parts: others, LengthInUnits: length}
}

func checkBlocks(resource string, bs []block.Block) {
	for i, b := range bs {
		switch {
		case b.ResourceID != resource:
			panic(&InvariantError{ResourceID: resource, Reason: fmt.Sprintf("block %d belongs to %s", i, b.ResourceID)})
		case b.Index != i:
			panic(&InvariantError{ResourceID: resource, Reason: fmt.Sprintf("block at position %d has index %d", i, b.Index)})
		case b.StartUnit < 1 || b.StartUnit > b.EndUnit:
			panic(&InvariantError{ResourceID: resource, Reason: fmt.Sprintf("block %d has unit range %d-%d", i, b.StartUnit, b.EndUnit)})
		}
	}
}

func sortParts(parts []ClonePart) {
	sort.Slice(parts, func(i, j int) bool {
		a, b := parts[i], parts[j]
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.UnitStart < b.UnitStart
	})
}

// sortGroups orders groups by origin line, then by the first other part,
// then longest first.
func sortGroups(groups []CloneGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Origin.StartLine != b.Origin.StartLine {
			return a.Origin.StartLine < b.Origin.StartLine
		}
		if len(a.Parts) > 0 && len(b.Parts) > 0 {
			if a.Parts[0].ResourceID != b.Parts[0].ResourceID {
				return a.Parts[0].ResourceID < b.Parts[0].ResourceID
			}
			if a.Parts[0].StartLine != b.Parts[0].StartLine {
				return a.Parts[0].StartLine < b.Parts[0].StartLine
			}
		}
		return a.LengthInUnits > b.LengthInUnits
	})
}
