// Package memory provides an in-memory implementation of the persistence
// ports, used for development and the test suite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	apperrors "boardsync-backend/pkg/errors"
)

// Store is an in-memory implementation of ports.Store.
type Store struct {
	mu       sync.RWMutex
	boards   map[string]board.Board
	members  map[string]map[string]bool          // boardID -> userID set
	elements map[string]map[string]board.Element // boardID -> elementID -> element
}

// Compile-time interface check
var _ ports.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		boards:   make(map[string]board.Board),
		members:  make(map[string]map[string]bool),
		elements: make(map[string]map[string]board.Element),
	}
}

// CreateBoard stores the board and the owner membership atomically.
func (s *Store) CreateBoard(ctx context.Context, b board.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.boards[b.ID]; exists {
		return apperrors.NewConflict("board already exists: " + b.ID)
	}
	s.boards[b.ID] = b
	s.members[b.ID] = map[string]bool{b.OwnerID: true}
	s.elements[b.ID] = make(map[string]board.Element)
	return nil
}

// GetBoard returns a board by id.
func (s *Store) GetBoard(ctx context.Context, boardID string) (board.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[boardID]
	if !ok {
		return board.Board{}, apperrors.NewNotFound("board not found: " + boardID)
	}
	return b, nil
}

// ListBoardsByUser returns every board the user is a member of.
func (s *Store) ListBoardsByUser(ctx context.Context, userID string) ([]board.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []board.Board
	for boardID, users := range s.members {
		if users[userID] {
			if b, ok := s.boards[boardID]; ok {
				result = append(result, b)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// DeleteBoard removes the board, its memberships and its elements.
func (s *Store) DeleteBoard(ctx context.Context, boardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[boardID]; !ok {
		return apperrors.NewNotFound("board not found: " + boardID)
	}
	delete(s.boards, boardID)
	delete(s.members, boardID)
	delete(s.elements, boardID)
	return nil
}

// IsMember reports whether the user has access to the board.
func (s *Store) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[boardID][userID], nil
}

// AddMember grants the user access to the board.
func (s *Store) AddMember(ctx context.Context, boardID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[boardID]; !ok {
		return apperrors.NewNotFound("board not found: " + boardID)
	}
	if s.members[boardID] == nil {
		s.members[boardID] = make(map[string]bool)
	}
	s.members[boardID][userID] = true
	return nil
}

// RemoveMember revokes the user's access to the board.
func (s *Store) RemoveMember(ctx context.Context, boardID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if users, ok := s.members[boardID]; ok {
		delete(users, userID)
	}
	return nil
}

// ListElements returns the current element set of a board.
func (s *Store) ListElements(ctx context.Context, boardID string) ([]board.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	els := s.elements[boardID]
	result := make([]board.Element, 0, len(els))
	for _, el := range els {
		result = append(result, el)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// InsertElement stores a new element.
func (s *Store) InsertElement(ctx context.Context, el board.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[el.BoardID]; !ok {
		return apperrors.NewNotFound("board not found: " + el.BoardID)
	}
	if s.elements[el.BoardID] == nil {
		s.elements[el.BoardID] = make(map[string]board.Element)
	}
	s.elements[el.BoardID][el.ID] = el
	return nil
}

// UpdateElement applies the non-nil patch fields, refreshes the timestamp
// and returns the stored element. Last write wins; there is no version
// check.
func (s *Store) UpdateElement(ctx context.Context, patch board.ElementPatch) (board.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.elements[patch.BoardID][patch.ID]
	if !ok {
		return board.Element{}, apperrors.NewNotFound("element not found: " + patch.ID)
	}
	if patch.Content != nil {
		el.Content = patch.Content
	}
	if patch.Position != nil {
		el.Position = patch.Position
	}
	if patch.Style != nil {
		el.Style = patch.Style
	}
	el.UpdatedAt = time.Now().UTC()
	s.elements[patch.BoardID][patch.ID] = el
	return el, nil
}

// DeleteElement removes an element. Deleting an absent element is not an
// error.
func (s *Store) DeleteElement(ctx context.Context, boardID, elementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if els, ok := s.elements[boardID]; ok {
		delete(els, elementID)
	}
	return nil
}
