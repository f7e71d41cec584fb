// Package membership keeps a hashring.Ring in step with an external member list.
// It is the caller the ring expects: it detects membership changes and turns them
// into AddNode and RemoveNode calls.
package membership

import (
	"context"

	hashring "go-hashring"
)

// Member is a desired ring member.
// A zero VirtualCount means the watcher's default count.
type Member struct {
	Address      string
	VirtualCount uint32
}

// MemberSource lists the members that should currently be on the ring.
type MemberSource interface {
	ListMembers(ctx context.Context) ([]Member, error)
}

// Ring is the subset of *hashring.Ring the watcher drives.
type Ring interface {
	AddNode(id string, virtualCount uint32) error
	RemoveNode(id string) error
	Nodes() []hashring.NodeInfo
}
