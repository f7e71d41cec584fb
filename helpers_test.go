package hashring

import (
	"testing"
)

// tableHasher pins chosen inputs to fixed positions and falls back to Hash for the rest.
type tableHasher map[string]uint32

func (t tableHasher) Sum32(data []byte) uint32 {
	if pos, ok := t[string(data)]; ok {
		return pos
	}
	return Hash(data)
}

// funcHasher adapts a function to Hasher.
type funcHasher func(data []byte) uint32

func (f funcHasher) Sum32(data []byte) uint32 {
	return f(data)
}

// assertSorted fails the test unless positions are strictly ascending and match the tables.
func assertSorted(t *testing.T, r *Ring) {
	t.Helper()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int
	for _, node := range r.nodes {
		total += len(node.positions)
	}
	if total != len(r.positions) || len(r.vnodes) != len(r.positions) {
		t.Fatalf("registry holds %d positions, table %d, ring %d", total, len(r.vnodes), len(r.positions))
	}

	for i := 1; i < len(r.positions); i++ {
		if r.positions[i-1] >= r.positions[i] {
			t.Fatalf("positions not strictly ascending at %d: %d >= %d", i, r.positions[i-1], r.positions[i])
		}
	}
}

// assertKeysResolved fails the test unless every bookkept key sits on the virtual node that owns its hash.
func assertKeysResolved(t *testing.T, r *Ring) {
	t.Helper()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for pos, vnode := range r.vnodes {
		for hash, key := range vnode.keys {
			var owner = r.positions[resolveOwner(r.positions, hash)]
			if owner != pos {
				t.Fatalf("key %q (%d) held by %s (%d) but owned by %s (%d)",
					key, hash, vnode.name, pos, r.vnodes[owner].name, owner)
			}
		}
	}
}
