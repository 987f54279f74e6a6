package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync-backend/domain/board"
	apperrors "boardsync-backend/pkg/errors"
)

func newBoard(id, owner string) board.Board {
	now := time.Now().UTC()
	return board.Board{ID: id, Name: "Board " + id, OwnerID: owner, CreatedAt: now, UpdatedAt: now}
}

func TestCreateBoard_OwnerBecomesMember(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))

	member, err := store.IsMember(ctx, "b1", "alice")
	require.NoError(t, err)
	assert.True(t, member)

	member, err = store.IsMember(ctx, "b1", "bob")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestCreateBoard_DuplicateIsConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	err := store.CreateBoard(ctx, newBoard("b1", "bob"))
	assert.True(t, apperrors.IsConflict(err))
}

func TestListBoardsByUser(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	require.NoError(t, store.CreateBoard(ctx, newBoard("b2", "bob")))
	require.NoError(t, store.AddMember(ctx, "b2", "alice"))

	boards, err := store.ListBoardsByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, boards, 2)

	boards, err = store.ListBoardsByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, boards, 1)
}

func TestDeleteBoard_RemovesEverything(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	require.NoError(t, store.InsertElement(ctx, board.Element{ID: "e1", BoardID: "b1", Type: board.ElementTypeNote}))
	require.NoError(t, store.DeleteBoard(ctx, "b1"))

	_, err := store.GetBoard(ctx, "b1")
	assert.True(t, apperrors.IsNotFound(err))

	member, err := store.IsMember(ctx, "b1", "alice")
	require.NoError(t, err)
	assert.False(t, member)

	elements, err := store.ListElements(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestUpdateElement_MergesPatchFields(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	require.NoError(t, store.InsertElement(ctx, board.Element{
		ID:       "e1",
		BoardID:  "b1",
		Type:     board.ElementTypeNote,
		Content:  json.RawMessage(`{"text":"hello"}`),
		Position: json.RawMessage(`{"x":1,"y":2}`),
	}))

	updated, err := store.UpdateElement(ctx, board.ElementPatch{
		ID:       "e1",
		BoardID:  "b1",
		Position: json.RawMessage(`{"x":5,"y":5}`),
	})
	require.NoError(t, err)

	// Untouched fields survive, patched fields replace
	assert.JSONEq(t, `{"text":"hello"}`, string(updated.Content))
	assert.JSONEq(t, `{"x":5,"y":5}`, string(updated.Position))
	assert.False(t, updated.UpdatedAt.IsZero())
}

func TestUpdateElement_MissingIsNotFound(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	_, err := store.UpdateElement(ctx, board.ElementPatch{ID: "nope", BoardID: "b1"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteElement_IsIdempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	require.NoError(t, store.InsertElement(ctx, board.Element{ID: "e1", BoardID: "b1", Type: board.ElementTypeCard}))

	assert.NoError(t, store.DeleteElement(ctx, "b1", "e1"))
	assert.NoError(t, store.DeleteElement(ctx, "b1", "e1"))
}

func TestRemoveMember_RevokesAccess(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBoard(ctx, newBoard("b1", "alice")))
	require.NoError(t, store.AddMember(ctx, "b1", "bob"))
	require.NoError(t, store.RemoveMember(ctx, "b1", "bob"))

	member, err := store.IsMember(ctx, "b1", "bob")
	require.NoError(t, err)
	assert.False(t, member)
}
