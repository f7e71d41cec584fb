package membership

import (
	"context"
	"fmt"

	hashring "go-hashring"
	"go-hashring/database"
)

// Store is a MemberSource backed by the members table.
type Store struct {
	ringID  string
	queries *database.Queries
}

// NewStore creates a new Store for the given ring.
func NewStore(ringID string, queries *database.Queries) *Store {
	return &Store{
		ringID:  ringID,
		queries: queries,
	}
}

// ListMembers returns all members registered for the ring.
func (s *Store) ListMembers(ctx context.Context) ([]Member, error) {
	var records, err = s.queries.ListMembers(ctx, s.ringID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	var members = make([]Member, len(records))
	for i, record := range records {
		members[i] = Member{
			Address:      record.Address,
			VirtualCount: uint32(record.VNodeCount),
		}
	}

	return members, nil
}

// Join registers a member, or updates its virtual node count.
func (s *Store) Join(ctx context.Context, member Member) error {
	if member.Address == "" || member.VirtualCount == 0 {
		return fmt.Errorf("member %q with %d virtual nodes: %w", member.Address, member.VirtualCount, hashring.ErrInvalidNode)
	}

	var record = &database.MemberRecord{
		RingID:     s.ringID,
		Address:    member.Address,
		VNodeCount: int(member.VirtualCount),
	}

	if err := s.queries.UpsertMember(ctx, record); err != nil {
		return fmt.Errorf("failed to join member %s: %w", member.Address, err)
	}

	return nil
}

// Leave removes a member from the ring.
func (s *Store) Leave(ctx context.Context, address string) error {
	if err := s.queries.DeleteMember(ctx, s.ringID, address); err != nil {
		return fmt.Errorf("failed to remove member %s: %w", address, err)
	}
	return nil
}
