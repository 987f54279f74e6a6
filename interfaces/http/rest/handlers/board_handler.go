package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	"boardsync-backend/pkg/auth"
	apperrors "boardsync-backend/pkg/errors"
)

// BoardHandler serves the board management surface: creating and deleting
// boards, managing memberships and reading element snapshots. Realtime
// mutation of elements goes over the WebSocket, not here.
type BoardHandler struct {
	store     ports.Store
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBoardHandler creates a board handler.
func NewBoardHandler(store ports.Store, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		store:     store,
		validator: validator.New(),
		logger:    logger,
	}
}

// CreateBoardRequest is the payload for creating a board.
type CreateBoardRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// AddMemberRequest is the payload for granting board access.
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// CreateBoard handles POST /api/v1/boards
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeError(w, apperrors.NewUnauthorized("authentication required", err))
		return
	}

	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, apperrors.NewValidation(err.Error()))
		return
	}

	now := time.Now().UTC()
	b := board.Board{
		ID:        uuid.New().String(),
		Name:      req.Name,
		OwnerID:   user.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateBoard(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("Board created",
		zap.String("board_id", b.ID),
		zap.String("owner_id", b.OwnerID),
	)
	writeJSON(w, http.StatusCreated, b)
}

// ListBoards handles GET /api/v1/boards
func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeError(w, apperrors.NewUnauthorized("authentication required", err))
		return
	}

	boards, err := h.store.ListBoardsByUser(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if boards == nil {
		boards = []board.Board{}
	}
	writeJSON(w, http.StatusOK, boards)
}

// GetBoard handles GET /api/v1/boards/{boardID}
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	_, boardID, err := h.requireMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	b, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBoard handles DELETE /api/v1/boards/{boardID}. Owner only.
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	user, boardID, err := h.requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.DeleteBoard(r.Context(), boardID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("Board deleted",
		zap.String("board_id", boardID),
		zap.String("owner_id", user.UserID),
	)
	writeJSON(w, http.StatusNoContent, nil)
}

// AddMember handles POST /api/v1/boards/{boardID}/members. Owner only.
func (h *BoardHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	_, boardID, err := h.requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, apperrors.NewValidation(err.Error()))
		return
	}

	if err := h.store.AddMember(r.Context(), boardID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// RemoveMember handles DELETE /api/v1/boards/{boardID}/members/{userID}.
// Owner only; the owner's own membership cannot be removed.
func (h *BoardHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	_, boardID, err := h.requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := chi.URLParam(r, "userID")
	b, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		writeError(w, err)
		return
	}
	if userID == b.OwnerID {
		writeError(w, apperrors.NewConflict("cannot remove the board owner"))
		return
	}

	if err := h.store.RemoveMember(r.Context(), boardID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListElements handles GET /api/v1/boards/{boardID}/elements. It returns
// the same snapshot a joining WebSocket connection is seeded with.
func (h *BoardHandler) ListElements(w http.ResponseWriter, r *http.Request) {
	_, boardID, err := h.requireMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	elements, err := h.store.ListElements(r.Context(), boardID)
	if err != nil {
		writeError(w, err)
		return
	}
	if elements == nil {
		elements = []board.Element{}
	}
	writeJSON(w, http.StatusOK, elements)
}

func (h *BoardHandler) requireMember(r *http.Request) (*auth.UserContext, string, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, "", apperrors.NewUnauthorized("authentication required", err)
	}
	boardID := chi.URLParam(r, "boardID")
	if boardID == "" {
		return nil, "", apperrors.NewValidation("board id is required")
	}

	member, err := h.store.IsMember(r.Context(), boardID, user.UserID)
	if err != nil {
		return nil, "", err
	}
	if !member {
		return nil, "", apperrors.NewForbidden("not a member of this board")
	}
	return user, boardID, nil
}

func (h *BoardHandler) requireOwner(r *http.Request) (*auth.UserContext, string, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, "", apperrors.NewUnauthorized("authentication required", err)
	}
	boardID := chi.URLParam(r, "boardID")
	if boardID == "" {
		return nil, "", apperrors.NewValidation("board id is required")
	}

	b, err := h.store.GetBoard(r.Context(), boardID)
	if err != nil {
		return nil, "", err
	}
	if b.OwnerID != user.UserID {
		return nil, "", apperrors.NewForbidden("only the board owner may do this")
	}
	return user, boardID, nil
}
