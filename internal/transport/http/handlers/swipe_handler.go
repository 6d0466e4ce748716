package handlers

import (
	"errors"
	"net/http"
	"strings"

	authsvc "github.com/pacheco20222/DogMatch-backend/internal/services/auth"
	swipesvc "github.com/pacheco20222/DogMatch-backend/internal/services/swipes"
	"github.com/pacheco20222/DogMatch-backend/internal/transport/http/dto"
	httperrors "github.com/pacheco20222/DogMatch-backend/internal/transport/http/errors"
)

type SwipeHandler struct {
	service *swipesvc.Service
}

func NewSwipeHandler(service *swipesvc.Service) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.EntityID <= 0 || req.TargetID <= 0 || strings.TrimSpace(req.Action) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "entity_id, target_id and action are required")
		return
	}

	result, err := h.service.Swipe(r.Context(), identity.OwnerID, req.EntityID, req.TargetID, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, swipesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid swipe request")
		case errors.Is(err, swipesvc.ErrUnsupportedAction):
			writeBadRequest(w, "VALIDATION_ERROR", "unsupported action")
		case errors.Is(err, swipesvc.ErrSameOwner):
			writeBadRequest(w, "VALIDATION_ERROR", "entities belong to the same owner")
		case errors.Is(err, swipesvc.ErrProfileNotFound):
			writeNotFound(w, "PROFILE_NOT_FOUND", "profile not found")
		case errors.Is(err, swipesvc.ErrConflict):
			writeConflict(w, "SWIPE_CONFLICT", "swipe raced with a concurrent request, retry")
		default:
			if tf, ok := swipesvc.IsTooFast(err); ok {
				httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
					Code:          "TOO_FAST",
					Message:       "too many swipe actions, slow down",
					RetryAfterSec: tf.RetryAfter(),
				})
				return
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to process swipe")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SwipeResponse{
		OK:           true,
		MatchCreated: result.MatchCreated,
		Match:        mapMatch(result.Match),
	})
}
