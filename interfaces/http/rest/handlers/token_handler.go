package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"boardsync-backend/pkg/auth"
	apperrors "boardsync-backend/pkg/errors"
)

// TokenHandler mints access tokens without an upstream identity
// provider. It is only mounted in development.
type TokenHandler struct {
	jwtService *auth.JWTService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(jwtService *auth.JWTService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		jwtService: jwtService,
		validator:  validator.New(),
		logger:     logger,
	}
}

// MintTokenRequest is the payload for minting a development token.
type MintTokenRequest struct {
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName"`
}

// MintTokenResponse carries the signed token.
type MintTokenResponse struct {
	Token string `json:"token"`
}

// Mint handles POST /api/v1/auth/token
func (h *TokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req MintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, apperrors.NewValidation(err.Error()))
		return
	}

	token, err := h.jwtService.GenerateToken(req.UserID, req.DisplayName)
	if err != nil {
		writeError(w, apperrors.NewInternal("failed to sign token", err))
		return
	}

	h.logger.Debug("Minted development token", zap.String("user_id", req.UserID))
	writeJSON(w, http.StatusOK, MintTokenResponse{Token: token})
}
