package hashring

import (
	"sync"
)

// Ring is a consistent hashing ring of virtual nodes owned by real nodes.
// Positions, the virtual node table and the real node registry are guarded as one unit by mu.
type Ring struct {
	mu        sync.RWMutex
	keysMu    sync.Mutex              // Guards virtualNode.keys while mu is only read-locked
	positions []uint32                // Sorted, duplicate-free positions of all virtual nodes
	vnodes    map[uint32]*virtualNode // Virtual node table keyed by position
	nodes     map[string]*realNode    // Real node registry keyed by identifier
	options   options
}

// realNode is a backend owning one or more virtual nodes.
type realNode struct {
	id        string
	suffix    uint64              // Last counter used to name a virtual node; never reused
	positions map[uint32]struct{} // Positions of the virtual nodes this node owns
}

// virtualNode is a single placement point on the ring.
type virtualNode struct {
	name     string
	position uint32
	nodeID   string            // Owning real node, resolved through the registry
	keys     map[uint32]string // Key hash -> key id bookkept on this virtual node
}

// NodeInfo is a read-only view of a real node.
type NodeInfo struct {
	ID           string
	VirtualNodes int
	Suffix       uint64
	Positions    []uint32
	Keys         int
}

// Stats holds aggregate ring counters.
type Stats struct {
	RealNodes    int
	VirtualNodes int
	Keys         int
}

// keyMove is one pending ownership transfer computed before a topology change is committed.
type keyMove struct {
	hash uint32
	key  string
	from uint32
	to   uint32
}
