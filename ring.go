package hashring

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

var (
	// ErrEmptyRing is returned when a lookup or put runs against a ring with no virtual nodes.
	ErrEmptyRing = errors.New("ring has no virtual nodes")

	// ErrNodeNotFound is returned when a real node identifier is not registered.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPlacementExhausted is returned when no collision-free position is found within the retry bound.
	ErrPlacementExhausted = errors.New("no collision-free position within retry bound")

	// ErrNoMigrationTarget is returned when bookkept keys would be left without an owning virtual node.
	ErrNoMigrationTarget = errors.New("no virtual node left to take over keys")

	// ErrInvalidNode is returned for an empty identifier or a zero virtual node count.
	ErrInvalidNode = errors.New("node identifier must be non-empty and virtual count positive")
)

// NewRing creates an empty Ring.
func NewRing(opts ...Option) *Ring {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Ring{
		positions: make([]uint32, 0),
		vnodes:    make(map[uint32]*virtualNode),
		nodes:     make(map[string]*realNode),
		options:   options,
	}
}

// FindNearestPosition returns the index of the smallest position >= target.
// A target above the largest position wraps to index 0.
func (r *Ring) FindNearestPosition(target uint32) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 {
		return 0, ErrEmptyRing
	}

	var idx = searchPosition(r.positions, target)
	if idx >= len(r.positions) {
		return 0, nil
	}
	return idx, nil
}

// Lookup returns the identifier of the real node serving key.
//
// The owner is the successor of the nearest position at or after the key's hash.
// A hash above the largest position has no such position and resolves to the lowest one,
// not to the successor of the lowest one as a wrap-then-advance lookup would give.
// Put and migration use the same rule, so a bookkept key always sits where Lookup finds it.
func (r *Ring) Lookup(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 {
		return "", ErrEmptyRing
	}

	var (
		hash = r.options.hasher.Sum32([]byte(key))
		pos  = r.positions[resolveOwner(r.positions, hash)]
	)
	return r.vnodes[pos].nodeID, nil
}

// Put records key on the virtual node that Lookup resolves it to.
// It only bookkeeps ownership; payload storage lives with the caller.
func (r *Ring) Put(key string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 {
		return ErrEmptyRing
	}

	var (
		hash  = r.options.hasher.Sum32([]byte(key))
		pos   = r.positions[resolveOwner(r.positions, hash)]
		vnode = r.vnodes[pos]
	)

	r.keysMu.Lock()
	vnode.keys[hash] = key
	r.keysMu.Unlock()

	r.options.logger.Debug("put key",
		"key", key,
		"key_hash", hash,
		"vnode", vnode.name,
		"position", pos)

	return nil
}

// Positions returns a copy of the sorted virtual node positions.
func (r *Ring) Positions() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.positions)
}

// Nodes returns every registered real node, sorted by identifier.
func (r *Ring) Nodes() []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos = make([]NodeInfo, 0, len(r.nodes))
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		infos = append(infos, r.nodeInfo(r.nodes[id]))
	}
	return infos
}

// Node returns the view of a single real node.
func (r *Ring) Node(id string) (NodeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var node, exists = r.nodes[id]
	if !exists {
		return NodeInfo{}, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	return r.nodeInfo(node), nil
}

// Keys returns every key bookkept on the virtual nodes of a real node.
func (r *Ring) Keys(id string) (map[uint32]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var node, exists = r.nodes[id]
	if !exists {
		return nil, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}

	r.keysMu.Lock()
	defer r.keysMu.Unlock()

	var keys = make(map[uint32]string)
	for pos := range node.positions {
		maps.Copy(keys, r.vnodes[pos].keys)
	}
	return keys, nil
}

// Stats returns aggregate counters.
func (r *Ring) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.keysMu.Lock()
	defer r.keysMu.Unlock()

	var keys int
	for _, vnode := range r.vnodes {
		keys += len(vnode.keys)
	}

	return Stats{
		RealNodes:    len(r.nodes),
		VirtualNodes: len(r.positions),
		Keys:         keys,
	}
}

// nodeInfo builds a NodeInfo. Must be called with mu held.
func (r *Ring) nodeInfo(node *realNode) NodeInfo {
	r.keysMu.Lock()
	defer r.keysMu.Unlock()

	var (
		positions = slices.Sorted(maps.Keys(node.positions))
		keys      int
	)
	for _, pos := range positions {
		keys += len(r.vnodes[pos].keys)
	}

	return NodeInfo{
		ID:           node.id,
		VirtualNodes: len(positions),
		Suffix:       node.suffix,
		Positions:    positions,
		Keys:         keys,
	}
}

// searchPosition returns the smallest index whose position is >= target, or len(positions).
func searchPosition(positions []uint32, target uint32) int {
	return sort.Search(len(positions), func(i int) bool {
		return positions[i] >= target
	})
}

// resolveOwner returns the index of the virtual node owning hash.
// positions must be sorted and non-empty.
func resolveOwner(positions []uint32, hash uint32) int {
	var idx = searchPosition(positions, hash) + 1
	if idx >= len(positions) {
		// Cross the zero
		return 0
	}
	return idx
}

// String returns a visual representation of the ring state.
func (r *Ring) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.keysMu.Lock()
	defer r.keysMu.Unlock()

	var b strings.Builder

	b.WriteString(fmt.Sprintf("Real Nodes: %d | Virtual Nodes: %d\n", len(r.nodes), len(r.positions)))

	if len(r.positions) == 0 {
		b.WriteString("\n[Empty Ring]\n")
		return b.String()
	}

	b.WriteString("\nRing Topology:\n")
	b.WriteString("┌─────────────────────────────────────────────────────────────┐\n")

	for _, pos := range r.positions {
		var vnode = r.vnodes[pos]
		b.WriteString(fmt.Sprintf("│ @%-10d  %-24s  %-18s  keys:%d\n",
			pos, vnode.name, vnode.nodeID, len(vnode.keys)))
	}

	b.WriteString("└─────────────────────────────────────────────────────────────┘\n")

	b.WriteString("\nNode Summary:\n")
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		var (
			node = r.nodes[id]
			keys int
		)
		for pos := range node.positions {
			keys += len(r.vnodes[pos].keys)
		}
		b.WriteString(fmt.Sprintf("  %-18s  vnodes: %-5d  suffix: %-6d  keys: %d\n",
			id, len(node.positions), node.suffix, keys))
	}

	return b.String()
}
