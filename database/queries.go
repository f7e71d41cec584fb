package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is an interface that both sql.DB and sql.Tx implement.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries provides table-aware database operations.
type Queries struct {
	db        DBTX
	tableName string
}

// NewQueries creates a new Queries instance with the given table name.
func NewQueries(db DBTX, tableName string) *Queries {
	return &Queries{
		db:        db,
		tableName: tableName,
	}
}

var (
	listMembersSQL = `
SELECT ring_id, address, vnode_count, updated_at
FROM %s_members
WHERE ring_id = $1
ORDER BY address ASC;`

	getMemberSQL = `
SELECT ring_id, address, vnode_count, updated_at
FROM %s_members
WHERE ring_id = $1 AND address = $2;`

	upsertMemberSQL = `
INSERT INTO %s_members (ring_id, address, vnode_count, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (ring_id, address)
DO UPDATE SET
    vnode_count = EXCLUDED.vnode_count,
    updated_at = EXCLUDED.updated_at;`

	deleteMemberSQL = `
DELETE FROM %s_members
WHERE ring_id = $1 AND address = $2;`
)

// ListMembers returns all members of a ring, ordered by address.
func (q *Queries) ListMembers(ctx context.Context, ringID string) ([]*MemberRecord, error) {
	var (
		query     = fmt.Sprintf(listMembersSQL, q.tableName)
		rows, err = q.db.QueryContext(ctx, query, ringID)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*MemberRecord
	for rows.Next() {
		var member MemberRecord
		if err := rows.Scan(&member.RingID, &member.Address, &member.VNodeCount, &member.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return members, nil
}

// GetMember retrieves a single member by address. Returns nil when absent.
func (q *Queries) GetMember(ctx context.Context, ringID, address string) (*MemberRecord, error) {
	var (
		query  = fmt.Sprintf(getMemberSQL, q.tableName)
		member MemberRecord
		err    = q.db.QueryRowContext(ctx, query, ringID, address).Scan(
			&member.RingID, &member.Address, &member.VNodeCount, &member.UpdatedAt,
		)
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &member, nil
}

// UpsertMember inserts a member or updates its virtual node count.
func (q *Queries) UpsertMember(ctx context.Context, member *MemberRecord) error {
	var query = fmt.Sprintf(upsertMemberSQL, q.tableName)
	_, err := q.db.ExecContext(ctx, query, member.RingID, member.Address, member.VNodeCount)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// DeleteMember removes a member by address.
func (q *Queries) DeleteMember(ctx context.Context, ringID, address string) error {
	var query = fmt.Sprintf(deleteMemberSQL, q.tableName)
	_, err := q.db.ExecContext(ctx, query, ringID, address)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}
