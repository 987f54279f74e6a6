// Package ports defines the interfaces the realtime core consumes. The
// websocket layer never talks to a concrete store or verifier; everything
// durable or external enters through these ports.
package ports

import (
	"context"

	"boardsync-backend/domain/board"
)

// BoardRepository persists board records.
type BoardRepository interface {
	// CreateBoard stores the board and the owner's membership as a single
	// transactional operation.
	CreateBoard(ctx context.Context, b board.Board) error
	GetBoard(ctx context.Context, boardID string) (board.Board, error)
	ListBoardsByUser(ctx context.Context, userID string) ([]board.Board, error)
	// DeleteBoard removes the board record along with its memberships and
	// elements.
	DeleteBoard(ctx context.Context, boardID string) error
}

// MembershipRepository answers and mutates board access.
type MembershipRepository interface {
	IsMember(ctx context.Context, boardID, userID string) (bool, error)
	AddMember(ctx context.Context, boardID, userID string) error
	RemoveMember(ctx context.Context, boardID, userID string) error
}

// ElementRepository persists board elements.
type ElementRepository interface {
	ListElements(ctx context.Context, boardID string) ([]board.Element, error)
	InsertElement(ctx context.Context, el board.Element) error
	// UpdateElement applies the non-nil fields of the patch, refreshes the
	// server-side timestamp and returns the full element as stored.
	UpdateElement(ctx context.Context, patch board.ElementPatch) (board.Element, error)
	DeleteElement(ctx context.Context, boardID, elementID string) error
}

// Store is the full persistence surface consumed by the application: the
// membership oracle plus board/element CRUD.
type Store interface {
	BoardRepository
	MembershipRepository
	ElementRepository
}

// TokenVerifier validates an opaque credential and yields a stable identity.
type TokenVerifier interface {
	Verify(credential string) (board.Identity, error)
}
