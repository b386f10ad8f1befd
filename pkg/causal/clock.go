// Package causal implements the logical clocks that let participants with
// independent, unordered connections agree on the relative order of events.
// Every event carries a Stamp: a Lamport scalar giving a total order
// consistent with causality, and a vector clock giving the exact
// happened-before relation between events from different participants.
package causal

// Ordering is the result of comparing two vector clocks.
type Ordering int

const (
	Before Ordering = iota
	After
	Concurrent
	Equal
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "BEFORE"
	case After:
		return "AFTER"
	case Concurrent:
		return "CONCURRENT"
	case Equal:
		return "EQUAL"
	}
	return "UNKNOWN"
}

// Vector maps participant id to that participant's event counter. A missing
// entry is equivalent to 0, so participants join lazily: no existing vector
// needs updating when a new participant appears. Entries are never removed;
// a departed participant's past events stay causally meaningful.
type Vector map[string]int64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for id, n := range v {
		out[id] = n
	}
	return out
}

// Sanitize clamps negative entries to 0. Malformed vectors from the wire are
// repaired rather than rejected: availability of the merged view wins over
// strict validation.
func Sanitize(v Vector) Vector {
	out := make(Vector, len(v))
	for id, n := range v {
		if n < 0 {
			n = 0
		}
		out[id] = n
	}
	return out
}

// Merge returns the entrywise maximum of a and b over the union of their
// keys. Pure: neither input is mutated. The caller advancing on receipt is
// responsible for also bumping its Lamport scalar to max(local, remote)+1.
func Merge(a, b Vector) Vector {
	out := make(Vector, len(a)+len(b))
	for id, n := range a {
		out[id] = n
	}
	for id, n := range b {
		if n > out[id] {
			out[id] = n
		}
	}
	return out
}

// Compare reports the causal relation between a and b. A is Before b iff
// every entry of a is <= the matching entry of b (absent = 0) and at least
// one is strictly less. If neither containment holds the events are
// Concurrent and both must be applied, with ties broken deterministically
// (see Less) rather than by wall clock.
func Compare(a, b Vector) Ordering {
	var aLess, bLess bool
	for id, an := range a {
		bn := b[id]
		if an < bn {
			aLess = true
		} else if an > bn {
			bLess = true
		}
	}
	for id, bn := range b {
		if _, ok := a[id]; ok {
			continue
		}
		if bn > 0 {
			aLess = true
		}
	}
	switch {
	case aLess && bLess:
		return Concurrent
	case aLess:
		return Before
	case bLess:
		return After
	}
	return Equal
}

// Stamp is the pair attached to every event leaving a participant.
type Stamp struct {
	Lamport int64  `json:"lamport"`
	Vector  Vector `json:"vector"`
}

// Clone returns a deep copy of the stamp.
func (s Stamp) Clone() Stamp {
	return Stamp{Lamport: s.Lamport, Vector: s.Vector.Clone()}
}

// Less is the deterministic total order used to break ties between
// concurrent events: Lamport scalar first, then lexicographic owner id.
// Never wall clock, which is unreliable across machines.
func Less(a Stamp, aOwner string, b Stamp, bOwner string) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport < b.Lamport
	}
	return aOwner < bOwner
}
