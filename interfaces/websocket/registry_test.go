package websocket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"boardsync-backend/domain/board"
	apperrors "boardsync-backend/pkg/errors"
)

// stubVerifier accepts any credential of the form "user:<id>" and rejects
// everything else.
type stubVerifier struct{}

func (stubVerifier) Verify(credential string) (board.Identity, error) {
	if len(credential) > 5 && credential[:5] == "user:" {
		id := credential[5:]
		return board.Identity{ID: id, DisplayName: id}, nil
	}
	return board.Identity{}, errors.New("bad credential")
}

func newTestClient(id string) *Client {
	return &Client{
		ID:     id,
		send:   make(chan []byte, 16),
		logger: zap.NewNop(),
	}
}

func TestRegistry_AuthenticateBindsIdentity(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	c := newTestClient("c1")
	r.Register(c)

	identity, err := r.Authenticate("c1", "user:alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.ID)

	got, ok := r.Identity("c1")
	require.True(t, ok)
	assert.Equal(t, identity, got)
}

func TestRegistry_AuthenticateRejectsBadCredential(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	c := newTestClient("c1")
	r.Register(c)

	_, err := r.Authenticate("c1", "garbage")
	assert.Error(t, err)

	_, ok := r.Identity("c1")
	assert.False(t, ok)
}

func TestRegistry_AuthenticateIsOneShot(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	c := newTestClient("c1")
	r.Register(c)

	_, err := r.Authenticate("c1", "user:alice")
	require.NoError(t, err)

	_, err = r.Authenticate("c1", "user:bob")
	assert.True(t, apperrors.IsConflict(err))

	// Identity is unchanged
	got, _ := r.Identity("c1")
	assert.Equal(t, "alice", got.ID)
}

func TestRegistry_BindRoomRequiresAuthentication(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	c := newTestClient("c1")
	r.Register(c)

	err := r.BindRoom("c1", "b1")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestRegistry_BindRoomOnceAtATime(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	c := newTestClient("c1")
	r.Register(c)
	_, err := r.Authenticate("c1", "user:alice")
	require.NoError(t, err)

	require.NoError(t, r.BindRoom("c1", "b1"))
	assert.Equal(t, "b1", r.RoomID("c1"))

	err = r.BindRoom("c1", "b2")
	assert.True(t, apperrors.IsConflict(err))

	// After unbinding, a new room may be joined
	assert.Equal(t, "b1", r.UnbindRoom("c1"))
	assert.Equal(t, "", r.UnbindRoom("c1"))
	require.NoError(t, r.BindRoom("c1", "b2"))
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	c := newTestClient("c1")
	r.Register(c)
	_, err := r.Authenticate("c1", "user:alice")
	require.NoError(t, err)
	require.NoError(t, r.BindRoom("c1", "b1"))

	assert.Equal(t, "b1", r.Remove("c1"))
	assert.Equal(t, "", r.Remove("c1"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_CountForUser(t *testing.T) {
	r := NewRegistry(stubVerifier{}, zap.NewNop())
	for _, id := range []string{"c1", "c2", "c3"} {
		r.Register(newTestClient(id))
	}
	_, err := r.Authenticate("c1", "user:alice")
	require.NoError(t, err)
	_, err = r.Authenticate("c2", "user:alice")
	require.NoError(t, err)
	_, err = r.Authenticate("c3", "user:bob")
	require.NoError(t, err)

	assert.Equal(t, 2, r.CountForUser("alice"))
	assert.Equal(t, 1, r.CountForUser("bob"))
	assert.Equal(t, 0, r.CountForUser("carol"))
}
