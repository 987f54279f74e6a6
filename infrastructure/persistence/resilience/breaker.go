// Package resilience decorates a store with a circuit breaker so a
// struggling backend degrades into fast storage errors instead of piling
// up blocked room events.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	apperrors "boardsync-backend/pkg/errors"
)

// BreakerStore wraps a ports.Store with a shared circuit breaker. An open
// breaker surfaces as a STORAGE error; room state is never touched when
// the breaker rejects a call.
type BreakerStore struct {
	inner   ports.Store
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// Compile-time interface check
var _ ports.Store = (*BreakerStore)(nil)

// NewBreakerStore wraps the given store.
func NewBreakerStore(inner ports.Store, logger *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Store circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Domain-level misses are not backend failures.
			return err == nil || apperrors.IsNotFound(err) || apperrors.IsConflict(err)
		},
	})

	return &BreakerStore{inner: inner, breaker: cb, logger: logger}
}

func (s *BreakerStore) execute(op func() (interface{}, error)) (interface{}, error) {
	result, err := s.breaker.Execute(op)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewStorage("storage temporarily unavailable", err)
		}
		return nil, err
	}
	return result, nil
}

func (s *BreakerStore) CreateBoard(ctx context.Context, b board.Board) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.CreateBoard(ctx, b)
	})
	return err
}

func (s *BreakerStore) GetBoard(ctx context.Context, boardID string) (board.Board, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.inner.GetBoard(ctx, boardID)
	})
	if err != nil {
		return board.Board{}, err
	}
	return result.(board.Board), nil
}

func (s *BreakerStore) ListBoardsByUser(ctx context.Context, userID string) ([]board.Board, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.inner.ListBoardsByUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]board.Board), nil
}

func (s *BreakerStore) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.DeleteBoard(ctx, boardID)
	})
	return err
}

func (s *BreakerStore) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.inner.IsMember(ctx, boardID, userID)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s *BreakerStore) AddMember(ctx context.Context, boardID, userID string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.AddMember(ctx, boardID, userID)
	})
	return err
}

func (s *BreakerStore) RemoveMember(ctx context.Context, boardID, userID string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.RemoveMember(ctx, boardID, userID)
	})
	return err
}

func (s *BreakerStore) ListElements(ctx context.Context, boardID string) ([]board.Element, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.inner.ListElements(ctx, boardID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]board.Element), nil
}

func (s *BreakerStore) InsertElement(ctx context.Context, el board.Element) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.InsertElement(ctx, el)
	})
	return err
}

func (s *BreakerStore) UpdateElement(ctx context.Context, patch board.ElementPatch) (board.Element, error) {
	result, err := s.execute(func() (interface{}, error) {
		return s.inner.UpdateElement(ctx, patch)
	})
	if err != nil {
		return board.Element{}, err
	}
	return result.(board.Element), nil
}

func (s *BreakerStore) DeleteElement(ctx context.Context, boardID, elementID string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.inner.DeleteElement(ctx, boardID, elementID)
	})
	return err
}
