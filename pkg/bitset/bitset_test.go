package bitset

import "testing"

func TestInsertRemoveContains(t *testing.T) {
	var s Set
	if !s.Empty() {
		t.Fatal("zero Set not empty")
	}
	s = s.Insert(0).Insert(3)
	if !s.Contains(0) || !s.Contains(3) || s.Contains(1) {
		t.Errorf("membership wrong after inserts: %#v", s)
	}
	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
	s = s.Remove(0)
	if s.Contains(0) || !s.Contains(3) {
		t.Errorf("membership wrong after remove: %#v", s)
	}
}

func TestOutOfRangeIndicesIgnored(t *testing.T) {
	var s Set
	s = s.Insert(-1).Insert(32)
	if !s.Empty() {
		t.Errorf("out-of-range insert mutated set: %#v", s)
	}
	if s.Contains(-1) || s.Contains(32) {
		t.Error("out-of-range Contains returned true")
	}
}

func TestSubsetOf(t *testing.T) {
	cases := []struct {
		s, t Set
		want bool
	}{
		{Of(), Of(), true},
		{Of(), Of(1, 2), true},
		{Of(1), Of(1, 2), true},
		{Of(1, 2), Of(1, 2), true},
		{Of(0, 2), Of(1, 2), false},
	}
	for _, c := range cases {
		if got := c.s.SubsetOf(c.t); got != c.want {
			t.Errorf("%#v.SubsetOf(%#v) = %v, want %v", c.s, c.t, got, c.want)
		}
	}
}

func TestValue(t *testing.T) {
	if v := Of(0, 2).Value(); v != 5 {
		t.Errorf("Value = %d, want 5", v)
	}
}
