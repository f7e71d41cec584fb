package membership

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	hashring "go-hashring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory MemberSource.
type fakeSource struct {
	mu      sync.Mutex
	members []Member
	err     error
	calls   int
}

func (f *fakeSource) ListMembers(ctx context.Context) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]Member(nil), f.members...), nil
}

func (f *fakeSource) set(members ...Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = members
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyRing fails the next failAdds calls to AddNode.
type flakyRing struct {
	*hashring.Ring
	failAdds int
}

func (f *flakyRing) AddNode(id string, virtualCount uint32) error {
	if f.failAdds > 0 {
		f.failAdds--
		return hashring.ErrPlacementExhausted
	}
	return f.Ring.AddNode(id, virtualCount)
}

type constantHasher uint32

func (c constantHasher) Sum32([]byte) uint32 {
	return uint32(c)
}

func TestWatcher(t *testing.T) {
	var (
		newCtx = func() context.Context {
			return context.Background()
		}
		nodeCounts = func(r *hashring.Ring) map[string]int {
			var counts = make(map[string]int)
			for _, node := range r.Nodes() {
				counts[node.ID] = node.VirtualNodes
			}
			return counts
		}
	)

	t.Run("should add every listed member", func(t *testing.T) {
		// Arrange
		var (
			ring   = hashring.NewRing()
			source = &fakeSource{members: []Member{
				{Address: "10.0.0.1", VirtualCount: 8},
				{Address: "10.0.0.2", VirtualCount: 4},
			}}
			sut = NewWatcher(ring, source)
		)

		// Act
		var err = sut.Reconcile(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"10.0.0.1": 8, "10.0.0.2": 4}, nodeCounts(ring))
	})

	t.Run("should use default virtual count for members without one", func(t *testing.T) {
		// Arrange
		var (
			ring   = hashring.NewRing()
			source = &fakeSource{members: []Member{{Address: "10.0.0.1"}}}
			sut    = NewWatcher(ring, source, WithDefaultVirtualCount(16))
		)

		// Act
		var err = sut.Reconcile(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"10.0.0.1": 16}, nodeCounts(ring))
	})

	t.Run("should remove members that left", func(t *testing.T) {
		// Arrange
		var (
			ring   = hashring.NewRing()
			source = &fakeSource{}
			sut    = NewWatcher(ring, source)
		)
		source.set(Member{Address: "10.0.0.1", VirtualCount: 8}, Member{Address: "10.0.0.2", VirtualCount: 8})
		require.NoError(t, sut.Reconcile(newCtx()))

		// Act
		source.set(Member{Address: "10.0.0.2", VirtualCount: 8})
		var err = sut.Reconcile(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"10.0.0.2": 8}, nodeCounts(ring))
	})

	t.Run("should grow and shrink members to the desired count", func(t *testing.T) {
		// Arrange
		var (
			ring   = hashring.NewRing()
			source = &fakeSource{}
			sut    = NewWatcher(ring, source)
		)
		source.set(Member{Address: "10.0.0.1", VirtualCount: 8}, Member{Address: "10.0.0.2", VirtualCount: 8})
		require.NoError(t, sut.Reconcile(newCtx()))

		// Act
		source.set(Member{Address: "10.0.0.1", VirtualCount: 12}, Member{Address: "10.0.0.2", VirtualCount: 3})
		var err = sut.Reconcile(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"10.0.0.1": 12, "10.0.0.2": 3}, nodeCounts(ring))

		var grown, infoErr = ring.Node("10.0.0.1")
		require.NoError(t, infoErr)
		assert.GreaterOrEqual(t, grown.Suffix, uint64(12), "growing continues the suffix counter")
	})

	t.Run("should be a no-op when ring already matches", func(t *testing.T) {
		// Arrange
		var (
			ring   = hashring.NewRing()
			source = &fakeSource{members: []Member{{Address: "10.0.0.1", VirtualCount: 8}}}
			sut    = NewWatcher(ring, source)
		)
		require.NoError(t, sut.Reconcile(newCtx()))
		var before = ring.Positions()

		// Act
		var err = sut.Reconcile(newCtx())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, before, ring.Positions())
	})

	t.Run("should return source errors", func(t *testing.T) {
		// Arrange
		var (
			sourceErr = errors.New("connection refused")
			sut       = NewWatcher(hashring.NewRing(), &fakeSource{err: sourceErr})
		)

		// Act
		var err = sut.Reconcile(newCtx())

		// Assert
		assert.ErrorIs(t, err, sourceErr)
	})

	t.Run("should keep applying members after one fails", func(t *testing.T) {
		// Arrange
		var (
			ring = hashring.NewRing(
				hashring.WithHasher(constantHasher(42)),
				hashring.WithMaxPlacementAttempts(2),
			)
			source = &fakeSource{members: []Member{
				{Address: "a", VirtualCount: 1},
				{Address: "b", VirtualCount: 1},
				{Address: "c", VirtualCount: 1},
			}}
			sut = NewWatcher(ring, source)
		)

		// Act
		var err = sut.Reconcile(newCtx())

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, hashring.ErrPlacementExhausted)
		assert.Contains(t, err.Error(), "failed to add b")
		assert.Contains(t, err.Error(), "failed to add c")
		assert.Equal(t, map[string]int{"a": 1}, nodeCounts(ring))
	})

	t.Run("should fail start when initial reconcile fails", func(t *testing.T) {
		// Arrange
		var sut = NewWatcher(hashring.NewRing(), &fakeSource{err: errors.New("boom")})

		// Act
		var err = sut.Start(newCtx())

		// Assert
		assert.Error(t, err)
		sut.Stop()
	})

	t.Run("should follow membership changes in the background", func(t *testing.T) {
		// Arrange
		var (
			ring   = hashring.NewRing()
			source = &fakeSource{members: []Member{{Address: "10.0.0.1", VirtualCount: 8}}}
			sut    = NewWatcher(ring, source, WithPollInterval(20*time.Millisecond))
		)

		// Act
		require.NoError(t, sut.Start(newCtx()))
		defer sut.Stop()

		source.set(Member{Address: "10.0.0.1", VirtualCount: 8}, Member{Address: "10.0.0.2", VirtualCount: 8})

		// Assert
		assert.Eventually(t, func() bool {
			return len(ring.Nodes()) == 2
		}, 2*time.Second, 10*time.Millisecond, "second member should join")

		source.set(Member{Address: "10.0.0.2", VirtualCount: 8})

		assert.Eventually(t, func() bool {
			var nodes = ring.Nodes()
			return len(nodes) == 1 && nodes[0].ID == "10.0.0.2"
		}, 2*time.Second, 10*time.Millisecond, "first member should leave")
	})

	t.Run("should stop polling after stop", func(t *testing.T) {
		// Arrange
		var (
			source = &fakeSource{}
			sut    = NewWatcher(hashring.NewRing(), source, WithPollInterval(10*time.Millisecond))
		)
		require.NoError(t, sut.Start(newCtx()))

		// Act
		sut.Stop()
		var calls = source.callCount()
		time.Sleep(50 * time.Millisecond)

		// Assert
		assert.Equal(t, calls, source.callCount())
		sut.Stop() // second stop is a no-op
	})

	t.Run("should refuse a second start", func(t *testing.T) {
		// Arrange
		var (
			source = &fakeSource{}
			sut    = NewWatcher(hashring.NewRing(), source)
		)
		require.NoError(t, sut.Start(newCtx()))
		defer sut.Stop()

		var calls = source.callCount()

		// Act
		var err = sut.Start(newCtx())

		// Assert
		assert.ErrorIs(t, err, ErrAlreadyStarted)
		assert.Equal(t, calls, source.callCount(), "a second start should not reconcile")
	})

	t.Run("should report a member lost by a failed shrink and restore it next time", func(t *testing.T) {
		// Arrange
		var (
			logs   = new(bytes.Buffer)
			ring   = &flakyRing{Ring: hashring.NewRing()}
			source = &fakeSource{members: []Member{{Address: "10.0.0.1", VirtualCount: 8}}}
			sut    = NewWatcher(ring, source, WithLogger(slog.New(slog.NewTextHandler(logs, nil))))
		)
		require.NoError(t, sut.Reconcile(newCtx()))
		source.set(Member{Address: "10.0.0.1", VirtualCount: 3})
		ring.failAdds = 1

		// Act
		var err = sut.Reconcile(newCtx())

		// Assert
		assert.ErrorContains(t, err, "failed to re-add 10.0.0.1")
		assert.Empty(t, nodeCounts(ring.Ring))
		assert.Contains(t, logs.String(), "level=ERROR")
		assert.Contains(t, logs.String(), "member missing from ring after shrink")

		require.NoError(t, sut.Reconcile(newCtx()))
		assert.Equal(t, map[string]int{"10.0.0.1": 3}, nodeCounts(ring.Ring))
	})
}
