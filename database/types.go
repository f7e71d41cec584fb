package database

import "time"

// MemberRecord represents a cluster member row in the database.
type MemberRecord struct {
	RingID     string
	Address    string
	VNodeCount int
	UpdatedAt  time.Time
}
