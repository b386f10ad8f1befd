package causal

import "sync"

// Node is one participant's clock. Tick and Observe are serialized by a
// mutex so two events originated concurrently by the same participant can
// never carry the same stamp.
type Node struct {
	id string

	mu      sync.Mutex
	lamport int64
	vector  Vector
}

func NewNode(id string) *Node {
	return &Node{
		id:     id,
		vector: Vector{id: 0},
	}
}

func (n *Node) ID() string { return n.id }

// Tick stamps a locally originated event: the Lamport scalar and the node's
// own vector entry each advance by one. Called synchronously with event
// creation, never batched, so two events from the same participant are
// always strictly ordered.
func (n *Node) Tick() Stamp {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.lamport++
	n.vector[n.id]++
	return Stamp{Lamport: n.lamport, Vector: n.vector.Clone()}
}

// Observe folds a received stamp into the local clock: entrywise-max merge
// of the vectors and Lamport advanced to max(local, remote)+1. The remote
// vector is sanitized first; a malformed stamp never fails the merge.
func (n *Node) Observe(remote Stamp) Stamp {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.vector = Merge(n.vector, Sanitize(remote.Vector))
	if remote.Lamport > n.lamport {
		n.lamport = remote.Lamport
	}
	n.lamport++
	return Stamp{Lamport: n.lamport, Vector: n.vector.Clone()}
}

// Current returns the clock state without advancing it.
func (n *Node) Current() Stamp {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Stamp{Lamport: n.lamport, Vector: n.vector.Clone()}
}
