package membership

import (
	"context"
	"database/sql"
	"testing"
	"time"

	hashring "go-hashring"
	"go-hashring/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration(t *testing.T) {
	const (
		testTable  = "test_hashring"
		testRingID = "test_ring"
	)

	var (
		newDb = func(t *testing.T) *sql.DB {
			var db = database.SetupTestDatabase(t)
			require.NoError(t, database.Migrate(db, testTable))
			return db
		}
		newCtx = func() context.Context {
			return context.Background()
		}
		newStore = func(db *sql.DB) *Store {
			return NewStore(testRingID, database.NewQueries(db, testTable))
		}
	)

	t.Run("should list joined members", func(t *testing.T) {
		t.Parallel()

		var (
			ctx = newCtx()
			sut = newStore(newDb(t))
		)

		require.NoError(t, sut.Join(ctx, Member{Address: "10.0.0.2", VirtualCount: 4}))
		require.NoError(t, sut.Join(ctx, Member{Address: "10.0.0.1", VirtualCount: 8}))

		var members, err = sut.ListMembers(ctx)

		require.NoError(t, err)
		assert.Equal(t, []Member{
			{Address: "10.0.0.1", VirtualCount: 8},
			{Address: "10.0.0.2", VirtualCount: 4},
		}, members)
	})

	t.Run("should reject invalid members before touching the database", func(t *testing.T) {
		t.Parallel()

		var (
			ctx = newCtx()
			sut = newStore(newDb(t))
		)

		assert.ErrorIs(t, sut.Join(ctx, Member{Address: "", VirtualCount: 4}), hashring.ErrInvalidNode)
		assert.ErrorIs(t, sut.Join(ctx, Member{Address: "10.0.0.1"}), hashring.ErrInvalidNode)
	})

	t.Run("should drive ring from the members table", func(t *testing.T) {
		t.Parallel()

		var (
			ctx     = newCtx()
			db      = newDb(t)
			store   = newStore(db)
			ring    = hashring.NewRing()
			watcher = NewWatcher(ring, store, WithPollInterval(50*time.Millisecond))
		)

		require.NoError(t, store.Join(ctx, Member{Address: "10.0.0.1", VirtualCount: 16}))
		require.NoError(t, watcher.Start(ctx))
		defer watcher.Stop()

		require.Len(t, ring.Nodes(), 1, "initial reconcile should place the first member")

		// Book some keys so leaving has to migrate them
		for _, key := range []string{"img/1.png", "img/2.png", "img/3.png", "img/4.png"} {
			require.NoError(t, ring.Put(key))
		}

		require.NoError(t, store.Join(ctx, Member{Address: "10.0.0.2", VirtualCount: 16}))

		assert.Eventually(t, func() bool {
			return len(ring.Nodes()) == 2
		}, 2*time.Second, 25*time.Millisecond, "second member should join the ring")

		require.NoError(t, store.Leave(ctx, "10.0.0.1"))

		assert.Eventually(t, func() bool {
			var nodes = ring.Nodes()
			return len(nodes) == 1 && nodes[0].ID == "10.0.0.2"
		}, 2*time.Second, 25*time.Millisecond, "first member should leave the ring")

		var keys, err = ring.Keys("10.0.0.2")
		require.NoError(t, err)
		assert.Len(t, keys, 4, "keys should migrate to the remaining member")
	})
}
