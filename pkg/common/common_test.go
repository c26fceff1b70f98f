package common

import (
	"reflect"
	"testing"
)

func TestFormatRelationship(t *testing.T) {
	tests := []struct {
		w    float64
		want string
	}{
		{w: 1, want: "Rome is connected to Venice (weight: 1)"},
		{w: 1.5, want: "Rome is connected to Venice (weight: 1.5)"},
		{w: 0.25, want: "Rome is connected to Venice (weight: 0.25)"},
	}
	for _, tc := range tests {
		if got := FormatRelationship("Rome", "connected", "Venice", tc.w); got != tc.want {
			t.Fatalf("FormatRelationship(%v) = %q, want %q", tc.w, got, tc.want)
		}
	}
}

func TestNormalizeMembers(t *testing.T) {
	in := []int64{3, 1, 3, 2}
	got := NormalizeMembers(in)
	if want := []int64{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeMembers() = %v, want %v", got, want)
	}
	if in[0] != 3 {
		t.Fatalf("input was modified: %v", in)
	}
	if !SameMembers([]int64{2, 1}, []int64{1, 2, 2}) {
		t.Fatalf("SameMembers() = false for equal sets")
	}
}

func TestSnapshot_EdgesWithin(t *testing.T) {
	s := &Snapshot{
		Nodes: []Entity{{ID: 1, Name: "Rome"}, {ID: 2, Name: "Venice"}, {ID: 3, Name: "Tokyo"}},
		Edges: []Relationship{
			{SourceID: 1, TargetID: 2, Label: "connected", Weight: 1},
			{SourceID: 2, TargetID: 3, Label: "connected", Weight: 1},
		},
	}
	got := s.EdgesWithin([]int64{1, 2})
	if len(got) != 1 || got[0].TargetID != 2 {
		t.Fatalf("EdgesWithin() = %+v", got)
	}
	if names := s.NameIndex(); names[3] != "Tokyo" {
		t.Fatalf("NameIndex() = %v", names)
	}
}
