package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	"boardsync-backend/infrastructure/persistence/memory"
	apperrors "boardsync-backend/pkg/errors"
)

// faultyStore fails every GetBoard with a backend error while delegating
// everything else.
type faultyStore struct {
	ports.Store
	calls int
}

func (f *faultyStore) GetBoard(ctx context.Context, boardID string) (board.Board, error) {
	f.calls++
	return board.Board{}, errors.New("backend down")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	inner := &faultyStore{Store: memory.NewStore()}
	store := NewBreakerStore(inner, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.GetBoard(ctx, "b1")
		require.Error(t, err)
	}

	callsBeforeOpen := inner.calls
	assert.Less(t, callsBeforeOpen, 10, "breaker should have stopped forwarding calls")

	// While open, callers get a storage error without touching the backend
	_, err := store.GetBoard(ctx, "b1")
	assert.True(t, apperrors.IsStorage(err))
	assert.Equal(t, callsBeforeOpen, inner.calls)
}

func TestBreakerTreatsDomainMissesAsSuccess(t *testing.T) {
	store := NewBreakerStore(memory.NewStore(), zap.NewNop())
	ctx := context.Background()

	// A stream of not-found responses must not trip the breaker
	for i := 0; i < 20; i++ {
		_, err := store.GetBoard(ctx, "missing")
		assert.True(t, apperrors.IsNotFound(err))
	}
}

func TestBreakerPassesThroughHealthyStore(t *testing.T) {
	store := NewBreakerStore(memory.NewStore(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, board.Board{ID: "b1", Name: "Board", OwnerID: "alice"}))

	b, err := store.GetBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "alice", b.OwnerID)

	member, err := store.IsMember(ctx, "b1", "alice")
	require.NoError(t, err)
	assert.True(t, member)
}
