package causal

import (
	"reflect"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want Ordering
	}{
		{
			name: "equal empty",
			a:    Vector{},
			b:    Vector{},
			want: Equal,
		},
		{
			name: "equal same entries",
			a:    Vector{"p1": 2, "p2": 1},
			b:    Vector{"p1": 2, "p2": 1},
			want: Equal,
		},
		{
			name: "before on single entry",
			a:    Vector{"p1": 1},
			b:    Vector{"p1": 2},
			want: Before,
		},
		{
			name: "after is symmetric",
			a:    Vector{"p1": 2},
			b:    Vector{"p1": 1},
			want: After,
		},
		{
			name: "absent entry treated as zero",
			a:    Vector{"p1": 1},
			b:    Vector{"p1": 1, "p2": 3},
			want: Before,
		},
		{
			name: "absent zero entry does not break equality",
			a:    Vector{"p1": 1},
			b:    Vector{"p1": 1, "p2": 0},
			want: Equal,
		},
		{
			name: "concurrent",
			a:    Vector{"p1": 2, "p2": 0},
			b:    Vector{"p1": 1, "p2": 1},
			want: Concurrent,
		},
		{
			name: "concurrent disjoint participants",
			a:    Vector{"p1": 1},
			b:    Vector{"p2": 1},
			want: Concurrent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComparePartialOrderLaws(t *testing.T) {
	v := Vector{"p1": 3, "p2": 1}
	if got := Compare(v, v); got != Equal {
		t.Errorf("Compare(v, v) = %v, want EQUAL", got)
	}

	a := Vector{"p1": 1, "p2": 1}
	b := Vector{"p1": 2, "p2": 1}
	c := Vector{"p1": 2, "p2": 4}
	if Compare(a, b) != Before || Compare(b, a) != After {
		t.Error("BEFORE/AFTER are not symmetric")
	}
	// Transitivity: a < b and b < c implies a < c.
	if Compare(a, b) == Before && Compare(b, c) == Before && Compare(a, c) != Before {
		t.Error("BEFORE is not transitive")
	}
}

func TestMergeLaws(t *testing.T) {
	a := Vector{"p1": 3, "p2": 1}
	b := Vector{"p2": 5, "p3": 2}

	ab := Merge(a, b)
	ba := Merge(b, a)
	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("merge not commutative: %v vs %v", ab, ba)
	}

	want := Vector{"p1": 3, "p2": 5, "p3": 2}
	if !reflect.DeepEqual(ab, want) {
		t.Errorf("Merge() = %v, want %v", ab, want)
	}

	aa := Merge(a, a)
	if !reflect.DeepEqual(aa, a) {
		t.Errorf("merge not idempotent: %v", aa)
	}

	// Pure: inputs untouched.
	if a["p2"] != 1 || b["p2"] != 5 {
		t.Error("Merge mutated an input")
	}
}

func TestSanitize(t *testing.T) {
	in := Vector{"p1": -4, "p2": 2}
	got := Sanitize(in)
	want := Vector{"p1": 0, "p2": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %v, want %v", got, want)
	}
	if in["p1"] != -4 {
		t.Error("Sanitize mutated its input")
	}
}

func TestLessDeterministicTieBreak(t *testing.T) {
	a := Stamp{Lamport: 5, Vector: Vector{"alice": 5}}
	b := Stamp{Lamport: 5, Vector: Vector{"bob": 5}}
	if !Less(a, "alice", b, "bob") {
		t.Error("equal lamport should fall back to lexicographic owner id")
	}
	if Less(b, "bob", a, "alice") {
		t.Error("tie-break must be asymmetric")
	}

	c := Stamp{Lamport: 3}
	if !Less(c, "zed", a, "alice") {
		t.Error("lower lamport must order first regardless of owner id")
	}
}
