package hashring

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// placement is a virtual node staged by AddNode before anything is committed.
type placement struct {
	name     string
	position uint32
}

// AddNode places virtualCount new virtual nodes for the real node id.
//
// Adding an existing id extends it: naming continues from its suffix counter so
// no earlier name is reused. All positions are staged first; when any of them
// cannot be placed the ring is left untouched.
func (r *Ring) AddNode(id string, virtualCount uint32) error {
	if id == "" || virtualCount == 0 {
		return fmt.Errorf("add node %q with %d virtual nodes: %w", id, virtualCount, ErrInvalidNode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		node, exists = r.nodes[id]
		suffix       uint64
		staged       = make([]placement, 0, virtualCount)
		taken        = make(map[uint32]struct{}, virtualCount)
	)
	if exists {
		suffix = node.suffix
	}

	for i := range virtualCount {
		var p, next, err = r.stagePlacement(id, suffix, taken)
		if err != nil {
			return fmt.Errorf("failed to place virtual node %d of %q: %w", i+1, id, err)
		}
		staged = append(staged, p)
		taken[p.position] = struct{}{}
		suffix = next
	}

	if !exists {
		node = &realNode{
			id:        id,
			positions: make(map[uint32]struct{}, virtualCount),
		}
		r.nodes[id] = node
	}

	for _, p := range staged {
		var idx = searchPosition(r.positions, p.position)
		r.positions = slices.Insert(r.positions, idx, p.position)
		r.vnodes[p.position] = &virtualNode{
			name:     p.name,
			position: p.position,
			nodeID:   id,
			keys:     make(map[uint32]string),
		}
		node.positions[p.position] = struct{}{}

		r.applyMoves(r.movesAfterInsert(idx))
	}
	node.suffix = suffix

	r.options.logger.Info("added real node",
		"node_id", id,
		"added_vnodes", virtualCount,
		"node_vnodes", len(node.positions),
		"total_vnodes", len(r.positions),
		"total_nodes", len(r.nodes))

	return nil
}

// stagePlacement mints names from suffix onwards until one hashes to a free position.
// Must be called with mu held.
func (r *Ring) stagePlacement(id string, suffix uint64, taken map[uint32]struct{}) (placement, uint64, error) {
	for range r.options.maxPlacementAttempts {
		suffix++

		var (
			name     = id + ":" + strconv.FormatUint(suffix, 10)
			position = r.options.hasher.Sum32([]byte(name))
		)

		if _, collides := r.vnodes[position]; collides {
			r.options.logger.Debug("virtual node collision", "name", name, "position", position)
			continue
		}
		if _, collides := taken[position]; collides {
			continue
		}

		return placement{name: name, position: position}, suffix, nil
	}

	return placement{}, suffix, fmt.Errorf("%d attempts: %w", r.options.maxPlacementAttempts, ErrPlacementExhausted)
}

// movesAfterInsert computes ownership transfers caused by the virtual node just inserted at idx.
// Only the two virtual nodes clockwise of idx can hold keys whose owner changed.
// Must be called with mu held.
func (r *Ring) movesAfterInsert(idx int) []keyMove {
	var n = len(r.positions)
	if n < 2 {
		return nil
	}

	var (
		inserted   = r.positions[idx]
		candidates = []uint32{r.positions[(idx+1)%n], r.positions[(idx+2)%n]}
	)
	if candidates[0] == candidates[1] {
		candidates = candidates[:1]
	}

	var moves []keyMove
	for _, pos := range candidates {
		if pos == inserted {
			continue
		}
		moves = append(moves, r.reresolve(r.positions, pos)...)
	}
	return moves
}

// RemoveNode removes the real node id and all of its virtual nodes.
//
// Keys bookkept on the removed virtual nodes move to the next virtual node clockwise
// that belongs to another real node. Every change is computed against the
// post-removal ring before any of it is committed.
func (r *Ring) RemoveNode(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var node, exists = r.nodes[id]
	if !exists {
		return fmt.Errorf("remove node %q: %w", id, ErrNodeNotFound)
	}

	var (
		n          = len(r.positions)
		removed    = slices.Sorted(maps.Keys(node.positions))
		remaining  = make([]uint32, 0, n-len(removed))
		candidates = make([]uint32, 0, 2*len(removed))
		seen       = make(map[uint32]struct{}, 2*len(removed))
	)
	var addCandidate = func(pos uint32) {
		if _, ok := seen[pos]; !ok {
			seen[pos] = struct{}{}
			candidates = append(candidates, pos)
		}
	}

	for _, pos := range r.positions {
		if _, gone := node.positions[pos]; !gone {
			remaining = append(remaining, pos)
		}
	}

	// Each removed position and its old clockwise neighbour, walked from the top of the ring down.
	slices.Reverse(removed)
	for _, pos := range removed {
		var idx = searchPosition(r.positions, pos)
		addCandidate(pos)
		addCandidate(r.positions[(idx+1)%n])
	}

	var moves []keyMove
	if len(remaining) == 0 {
		for _, pos := range candidates {
			if len(r.vnodes[pos].keys) > 0 {
				return fmt.Errorf("remove node %q: %w", id, ErrNoMigrationTarget)
			}
		}
	} else {
		for _, pos := range candidates {
			moves = append(moves, r.reresolve(remaining, pos)...)
		}
	}

	r.positions = remaining
	r.applyMoves(moves)
	for _, pos := range removed {
		delete(r.vnodes, pos)
	}
	delete(r.nodes, id)

	r.options.logger.Info("removed real node",
		"node_id", id,
		"removed_vnodes", len(removed),
		"moved_keys", len(moves),
		"total_vnodes", len(r.positions),
		"total_nodes", len(r.nodes))

	return nil
}

// reresolve lists the keys held by the virtual node at pos whose owner in positions is another node.
// Must be called with mu held.
func (r *Ring) reresolve(positions []uint32, pos uint32) []keyMove {
	var moves []keyMove
	for hash, key := range r.vnodes[pos].keys {
		var owner = positions[resolveOwner(positions, hash)]
		if owner != pos {
			moves = append(moves, keyMove{hash: hash, key: key, from: pos, to: owner})
		}
	}
	return moves
}

// applyMoves commits ownership transfers. Must be called with mu held for writing.
func (r *Ring) applyMoves(moves []keyMove) {
	for _, m := range moves {
		var (
			from = r.vnodes[m.from]
			to   = r.vnodes[m.to]
		)
		delete(from.keys, m.hash)
		to.keys[m.hash] = m.key

		r.options.logger.Debug("move key",
			"key", m.key,
			"key_hash", m.hash,
			"from", from.name,
			"to", to.name)
	}
}
