package detector

import (
	"sort"
	"strconv"
	"strings"
)

// filterContained drops every group whose parts all lie inside the parts of
// another retained group at least as long. Of two groups covering each other
// the first one found is kept.
func filterContained(groups []CloneGroup) []CloneGroup {
	if len(groups) < 2 {
		return groups
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return groups[order[a]].LengthInUnits > groups[order[b]].LengthInUnits
	})

	kept := make([]bool, len(groups))
	var retained []int
	for _, gi := range order {
		covered := false
		for _, ri := range retained {
			if containedIn(groups[gi], groups[ri]) {
				covered = true
				break
			}
		}
		if !covered {
			kept[gi] = true
			retained = append(retained, gi)
		}
	}

	out := groups[:0:0]
	for i, g := range groups {
		if kept[i] {
			out = append(out, g)
		}
	}
	return out
}

// containedIn reports whether every part of inner lies inside some part of
// outer in the same resource.
func containedIn(inner, outer CloneGroup) bool {
	if inner.LengthInUnits > outer.LengthInUnits {
		return false
	}
	outerParts := outer.All()
	for _, p := range inner.All() {
		end := p.UnitStart + inner.LengthInUnits - 1
		found := false
		for _, q := range outerParts {
			if q.ResourceID == p.ResourceID &&
				q.UnitStart <= p.UnitStart &&
				end <= q.UnitStart+outer.LengthInUnits-1 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func filterShort(groups []CloneGroup, minTokens int) []CloneGroup {
	if minTokens <= 0 {
		return groups
	}
	out := groups[:0]
	for _, g := range groups {
		if g.LengthInUnits >= minTokens {
			out = append(out, g)
		}
	}
	return out
}

// Canonical returns g with the lexicographically first part, by resource then
// start line, as origin and the remaining parts in the same order. Mirror
// groups found from different resources have equal canonical forms.
func Canonical(g CloneGroup) CloneGroup {
	parts := g.All()
	sortParts(parts)
	rest := make([]ClonePart, len(parts)-1)
	copy(rest, parts[1:])
	return CloneGroup{Origin: parts[0], Parts: rest, LengthInUnits: g.LengthInUnits}
}

// Dedupe canonicalizes groups and drops mirrors, keeping first occurrences in
// order.
func Dedupe(groups []CloneGroup) []CloneGroup {
	seen := make(map[string]struct{}, len(groups))
	out := make([]CloneGroup, 0, len(groups))
	for _, g := range groups {
		c := Canonical(g)
		k := key(c)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func key(g CloneGroup) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(g.LengthInUnits))
	for _, p := range g.All() {
		sb.WriteByte('|')
		sb.WriteString(p.ResourceID)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(p.UnitStart))
	}
	return sb.String()
}
