package websocket

import (
	"sync"

	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	apperrors "boardsync-backend/pkg/errors"
)

// connectionState tracks one live connection through its lifecycle:
// connected, then authenticated once an identity is bound, then joined
// once a room is bound.
type connectionState struct {
	client   *Client
	identity *board.Identity
	roomID   string
}

// Registry is the authoritative index of live connections. All lifecycle
// transitions go through it; the room manager only mirrors membership.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*connectionState
	verifier ports.TokenVerifier
	logger   *zap.Logger
}

// NewRegistry creates an empty registry backed by the given verifier.
func NewRegistry(verifier ports.TokenVerifier, logger *zap.Logger) *Registry {
	return &Registry{
		conns:    make(map[string]*connectionState),
		verifier: verifier,
		logger:   logger,
	}
}

// Register adds a freshly upgraded connection in the unauthenticated
// state.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = &connectionState{client: c}
}

// Authenticate verifies the credential and binds the resulting identity
// to the connection. A connection authenticates at most once.
func (r *Registry) Authenticate(connID, credential string) (board.Identity, error) {
	identity, err := r.verifier.Verify(credential)
	if err != nil {
		return board.Identity{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return board.Identity{}, apperrors.NewNotFound("connection not found: " + connID)
	}
	if state.identity != nil {
		return board.Identity{}, apperrors.NewConflict("connection already authenticated")
	}
	state.identity = &identity
	return identity, nil
}

// Identity returns the identity bound to a connection, if any.
func (r *Registry) Identity(connID string) (board.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.conns[connID]
	if !ok || state.identity == nil {
		return board.Identity{}, false
	}
	return *state.identity, true
}

// BindRoom marks the connection as joined to a board. The connection must
// be authenticated and not already in a room.
func (r *Registry) BindRoom(connID, boardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return apperrors.NewNotFound("connection not found: " + connID)
	}
	if state.identity == nil {
		return apperrors.NewUnauthorized("connection not authenticated", nil)
	}
	if state.roomID != "" {
		return apperrors.NewConflict("connection already in room " + state.roomID)
	}
	state.roomID = boardID
	return nil
}

// UnbindRoom clears the room binding and returns the previous board id,
// or "" if the connection was not in a room. Safe to call repeatedly.
func (r *Registry) UnbindRoom(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return ""
	}
	prev := state.roomID
	state.roomID = ""
	return prev
}

// RoomID returns the board the connection is currently joined to, or "".
func (r *Registry) RoomID(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.conns[connID]; ok {
		return state.roomID
	}
	return ""
}

// Remove deletes the connection and returns the room it was in, or "".
// Removing an unknown connection is a no-op, which makes disconnect
// cleanup idempotent.
func (r *Registry) Remove(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return ""
	}
	delete(r.conns, connID)
	return state.roomID
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountForUser returns the number of authenticated connections bound to
// the given user.
func (r *Registry) CountForUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, state := range r.conns {
		if state.identity != nil && state.identity.ID == userID {
			n++
		}
	}
	return n
}

// Clients returns every live client, used for shutdown.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for _, state := range r.conns {
		clients = append(clients, state.client)
	}
	return clients
}
