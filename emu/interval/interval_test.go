package interval

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func iv(start, end uint32) Interval {
	return Interval{Start: start, End: end}
}

func TestSetAddCoalesce(t *testing.T) {
	tests := []struct {
		name string
		add  []Interval
		want []Interval
	}{
		{
			name: "disjoint",
			add:  []Interval{iv(0, 10), iv(20, 30)},
			want: []Interval{iv(0, 10), iv(20, 30)},
		},
		{
			name: "overlapping",
			add:  []Interval{iv(0, 15), iv(10, 30)},
			want: []Interval{iv(0, 30)},
		},
		{
			name: "touching",
			add:  []Interval{iv(0, 10), iv(10, 20)},
			want: []Interval{iv(0, 20)},
		},
		{
			name: "touching from the left",
			add:  []Interval{iv(10, 20), iv(0, 10)},
			want: []Interval{iv(0, 20)},
		},
		{
			name: "bridging",
			add:  []Interval{iv(0, 10), iv(20, 30), iv(5, 25)},
			want: []Interval{iv(0, 30)},
		},
		{
			name: "empty ignored",
			add:  []Interval{iv(10, 10), iv(0, 5)},
			want: []Interval{iv(0, 5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Set
			for _, i := range tt.add {
				s.Add(i)
			}
			if diff := cmp.Diff(tt.want, s.Spans(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("spans mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetSub(t *testing.T) {
	tests := []struct {
		name string
		sub  Interval
		want []Interval
	}{
		{"middle split", iv(10, 20), []Interval{iv(0, 10), iv(20, 30)}},
		{"left trim", iv(0, 10), []Interval{iv(10, 30)}},
		{"right trim", iv(25, 40), []Interval{iv(0, 25)}},
		{"whole", iv(0, 30), nil},
		{"disjoint", iv(40, 50), []Interval{iv(0, 30)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSet(iv(0, 30))
			s.Sub(tt.sub)
			if diff := cmp.Diff(tt.want, s.Spans(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("spans mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetQueries(t *testing.T) {
	s := NewSet(iv(10, 20), iv(30, 40))

	if !s.Overlaps(iv(15, 35)) {
		t.Error("Overlaps(15, 35) = false, want true")
	}
	if s.Overlaps(iv(20, 30)) {
		t.Error("Overlaps(20, 30) = true, want false")
	}
	if !s.Contains(iv(12, 18)) {
		t.Error("Contains(12, 18) = false, want true")
	}
	if s.Contains(iv(15, 35)) {
		t.Error("Contains(15, 35) = true, want false")
	}

	got := s.Intersection(iv(15, 35)).Spans()
	want := []Interval{iv(15, 20), iv(30, 35)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Intersection mismatch (-want +got):\n%s", diff)
	}
}

func TestSetDifference(t *testing.T) {
	a := NewSet(iv(0, 100))
	b := NewSet(iv(20, 30), iv(50, 60))

	got := a.Difference(b).Spans()
	want := []Interval{iv(0, 20), iv(30, 50), iv(60, 100)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Difference mismatch (-want +got):\n%s", diff)
	}

	if !a.Difference(a).Empty() {
		t.Error("a - a should be empty")
	}
}

func TestMultiMapOverlapping(t *testing.T) {
	var m MultiMap[string]
	m.Add(iv(0, 100), "a")
	m.Add(iv(50, 150), "b")
	m.Add(iv(200, 300), "c")

	collect := func(q Interval) []string {
		var got []string
		m.Overlapping(q, func(_ Interval, v string) bool {
			got = append(got, v)
			return true
		})
		return got
	}

	if diff := cmp.Diff([]string{"a", "b"}, collect(iv(60, 80))); diff != "" {
		t.Errorf("overlap query mismatch (-want +got):\n%s", diff)
	}
	if got := collect(iv(150, 200)); got != nil {
		t.Errorf("gap query = %v, want none", got)
	}

	m.Remove(iv(0, 100), "a")
	if diff := cmp.Diff([]string{"b"}, collect(iv(60, 80))); diff != "" {
		t.Errorf("after remove (-want +got):\n%s", diff)
	}
}

func TestOwnerMapLastWriterWins(t *testing.T) {
	var m OwnerMap[string]
	m.Set(iv(0, 100), "a")
	m.Set(iv(50, 150), "b")

	spans := m.Overlapping(iv(0, 200))
	want := []Span[string]{
		{Iv: iv(0, 50), Val: "a"},
		{Iv: iv(50, 150), Val: "b"},
	}
	if diff := cmp.Diff(want, spans); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}

	// No byte has two owners.
	for i, sp := range spans {
		for _, other := range spans[i+1:] {
			if sp.Iv.Overlaps(other.Iv) {
				t.Errorf("segments %v and %v overlap", sp.Iv, other.Iv)
			}
		}
	}
}

func TestOwnerMapSubAndContains(t *testing.T) {
	var m OwnerMap[int]
	m.Set(iv(0, 100), 1)
	m.Sub(iv(40, 60))

	if m.Contains(iv(0, 100)) {
		t.Error("Contains over erased gap = true, want false")
	}
	if !m.Contains(iv(0, 40)) || !m.Contains(iv(60, 100)) {
		t.Error("Contains on remaining segments = false, want true")
	}

	m.Set(iv(40, 60), 2)
	if !m.Contains(iv(0, 100)) {
		t.Error("Contains after refill = false, want true")
	}
}

func TestCountMapAdd(t *testing.T) {
	var m CountMap
	m.Add(iv(0, 100), 1)
	m.Add(iv(50, 150), 1)

	want := []CountSpan{
		{Iv: iv(0, 50), Count: 1},
		{Iv: iv(50, 100), Count: 2},
		{Iv: iv(100, 150), Count: 1},
	}
	if diff := cmp.Diff(want, m.Overlapping(iv(0, 200))); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	// Dropping back to zero erases the segments.
	m.Add(iv(0, 100), -1)
	m.Add(iv(50, 150), -1)
	if !m.Empty() {
		t.Errorf("map not empty after symmetric removals: %v", m.Overlapping(iv(0, 200)))
	}
}
