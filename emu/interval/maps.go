package interval

import (
	"fmt"
	"sort"
)

// MultiMap associates intervals with values and answers overlap queries.
// Several values may cover the same byte. Entries are kept sorted by start
// address so query results are deterministic.
type MultiMap[V comparable] struct {
	entries []multiEntry[V]
}

type multiEntry[V comparable] struct {
	iv  Interval
	val V
}

func (m *MultiMap[V]) Add(iv Interval, v V) {
	if iv.Empty() {
		return
	}
	i := sort.Search(len(m.entries), func(k int) bool {
		return m.entries[k].iv.Start >= iv.Start
	})
	m.entries = append(m.entries, multiEntry[V]{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = multiEntry[V]{iv: iv, val: v}
}

// Remove drops the entry with exactly this interval and value.
func (m *MultiMap[V]) Remove(iv Interval, v V) {
	for i, e := range m.entries {
		if e.iv == iv && e.val == v {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

func (m *MultiMap[V]) Len() int {
	return len(m.entries)
}

func (m *MultiMap[V]) Clear() {
	m.entries = m.entries[:0]
}

// Overlapping calls fn for every entry intersecting iv, in address order.
// Iteration stops when fn returns false.
func (m *MultiMap[V]) Overlapping(iv Interval, fn func(Interval, V) bool) {
	for _, e := range m.entries {
		if e.iv.Start >= iv.End {
			break
		}
		if e.iv.Overlaps(iv) {
			if !fn(e.iv, e.val) {
				return
			}
		}
	}
}

// Span is a segment of an OwnerMap: an interval and the value owning it.
type Span[V comparable] struct {
	Iv  Interval
	Val V
}

// OwnerMap maps every byte to at most one owner, last writer wins. Segments
// are sorted, non-overlapping, and merged when adjacent with equal owners.
type OwnerMap[V comparable] struct {
	segs []Span[V]
}

func (m *OwnerMap[V]) Empty() bool {
	return len(m.segs) == 0
}

func (m *OwnerMap[V]) Clear() {
	m.segs = m.segs[:0]
}

// Set makes v the owner of iv, evicting previous owners from the overlap.
func (m *OwnerMap[V]) Set(iv Interval, v V) {
	if iv.Empty() {
		return
	}
	m.Sub(iv)
	i := sort.Search(len(m.segs), func(k int) bool {
		return m.segs[k].Iv.Start >= iv.Start
	})
	m.segs = append(m.segs, Span[V]{})
	copy(m.segs[i+1:], m.segs[i:])
	m.segs[i] = Span[V]{Iv: iv, Val: v}
	m.coalesce(i)
}

func (m *OwnerMap[V]) coalesce(i int) {
	if i+1 < len(m.segs) && m.segs[i].Iv.End == m.segs[i+1].Iv.Start && m.segs[i].Val == m.segs[i+1].Val {
		m.segs[i].Iv.End = m.segs[i+1].Iv.End
		m.segs = append(m.segs[:i+1], m.segs[i+2:]...)
	}
	if i > 0 && m.segs[i-1].Iv.End == m.segs[i].Iv.Start && m.segs[i-1].Val == m.segs[i].Val {
		m.segs[i-1].Iv.End = m.segs[i].Iv.End
		m.segs = append(m.segs[:i], m.segs[i+1:]...)
	}
}

// Sub erases ownership over iv, splitting straddling segments.
func (m *OwnerMap[V]) Sub(iv Interval) {
	if iv.Empty() {
		return
	}
	out := m.segs[:0:0]
	for _, sg := range m.segs {
		if !sg.Iv.Overlaps(iv) {
			out = append(out, sg)
			continue
		}
		if sg.Iv.Start < iv.Start {
			out = append(out, Span[V]{Iv: Interval{Start: sg.Iv.Start, End: iv.Start}, Val: sg.Val})
		}
		if iv.End < sg.Iv.End {
			out = append(out, Span[V]{Iv: Interval{Start: iv.End, End: sg.Iv.End}, Val: sg.Val})
		}
	}
	m.segs = out
}

// Overlapping returns the segments intersecting iv, whole and unclipped.
func (m *OwnerMap[V]) Overlapping(iv Interval) []Span[V] {
	var out []Span[V]
	for _, sg := range m.segs {
		if sg.Iv.Start >= iv.End {
			break
		}
		if sg.Iv.Overlaps(iv) {
			out = append(out, sg)
		}
	}
	return out
}

// Contains reports whether every byte of iv has an owner.
func (m *OwnerMap[V]) Contains(iv Interval) bool {
	if iv.Empty() {
		return true
	}
	at := iv.Start
	for _, sg := range m.segs {
		if sg.Iv.Start > at {
			return false
		}
		if sg.Iv.End > at {
			at = sg.Iv.End
			if at >= iv.End {
				return true
			}
		}
	}
	return false
}

// CountSpan is a segment of a CountMap.
type CountSpan struct {
	Iv    Interval
	Count int
}

// CountMap is an additive interval map of reference counts. Segments with a
// zero count are removed. Counts never go negative, that is a caller bug.
type CountMap struct {
	segs []CountSpan
}

func (m *CountMap) Empty() bool {
	return len(m.segs) == 0
}

func (m *CountMap) Clear() {
	m.segs = m.segs[:0]
}

// Overlapping returns segments intersecting iv, clipped to it.
func (m *CountMap) Overlapping(iv Interval) []CountSpan {
	var out []CountSpan
	for _, sg := range m.segs {
		if sg.Iv.Start >= iv.End {
			break
		}
		if sg.Iv.Overlaps(iv) {
			out = append(out, CountSpan{Iv: sg.Iv.Intersect(iv), Count: sg.Count})
		}
	}
	return out
}

// Add sums delta over iv, splitting segments at its bounds.
func (m *CountMap) Add(iv Interval, delta int) {
	if iv.Empty() || delta == 0 {
		return
	}

	// Split and sum over the existing segments, tracking the uncovered gaps.
	out := m.segs[:0:0]
	at := iv.Start
	for _, sg := range m.segs {
		if !sg.Iv.Overlaps(iv) {
			out = append(out, sg)
			continue
		}
		inter := sg.Iv.Intersect(iv)
		if sg.Iv.Start < inter.Start {
			out = append(out, CountSpan{Iv: Interval{Start: sg.Iv.Start, End: inter.Start}, Count: sg.Count})
		}
		if at < inter.Start {
			out = appendCount(out, CountSpan{Iv: Interval{Start: at, End: inter.Start}, Count: delta})
		}
		out = appendCount(out, CountSpan{Iv: inter, Count: sg.Count + delta})
		if inter.End < sg.Iv.End {
			out = append(out, CountSpan{Iv: Interval{Start: inter.End, End: sg.Iv.End}, Count: sg.Count})
		}
		at = inter.End
	}
	if at < iv.End {
		out = appendCount(out, CountSpan{Iv: Interval{Start: at, End: iv.End}, Count: delta})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Iv.Start < out[j].Iv.Start })

	// Merge equal-count neighbors.
	merged := out[:0:0]
	for _, sg := range out {
		n := len(merged)
		if n > 0 && merged[n-1].Iv.End == sg.Iv.Start && merged[n-1].Count == sg.Count {
			merged[n-1].Iv.End = sg.Iv.End
			continue
		}
		merged = append(merged, sg)
	}
	m.segs = merged
}

func appendCount(segs []CountSpan, sg CountSpan) []CountSpan {
	if sg.Count < 0 {
		panic(fmt.Sprintf("interval: negative refcount %d over [%#x, %#x)", sg.Count, sg.Iv.Start, sg.Iv.End))
	}
	if sg.Count == 0 || sg.Iv.Empty() {
		return segs
	}
	return append(segs, sg)
}
