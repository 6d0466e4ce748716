package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/pacheco20222/DogMatch-backend/internal/services/auth"
	matchessvc "github.com/pacheco20222/DogMatch-backend/internal/services/matches"
	"github.com/pacheco20222/DogMatch-backend/internal/transport/http/dto"
	httperrors "github.com/pacheco20222/DogMatch-backend/internal/transport/http/errors"
)

type MatchesHandler struct {
	service *matchessvc.Service
}

func NewMatchesHandler(service *matchessvc.Service) *MatchesHandler {
	return &MatchesHandler{service: service}
}

// List serves GET /matches?entity_id=&status=&limit=.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	entityID := int64(parseIntOrDefault(r.URL.Query().Get("entity_id"), 0))
	status := r.URL.Query().Get("status")
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 100)

	items, err := h.service.List(r.Context(), entityID, status, limit)
	if err != nil {
		switch {
		case errors.Is(err, matchessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid matches request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load matches")
		}
		return
	}

	responseItems := make([]dto.MatchItem, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, mapMatch(item))
	}

	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: responseItems})
}

func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	rec, err := h.service.Get(r.Context(), parseInt64Param(r, "matchID"), identity.OwnerID)
	if err != nil {
		writeMatchError(w, err, "failed to load match")
		return
	}

	httperrors.Write(w, http.StatusOK, mapMatch(rec))
}

func (h *MatchesHandler) PendingLikes(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	entityID := int64(parseIntOrDefault(r.URL.Query().Get("entity_id"), 0))
	items, err := h.service.PendingLikes(r.Context(), entityID)
	if err != nil {
		switch {
		case errors.Is(err, matchessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "entity_id is required")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load pending likes")
		}
		return
	}

	responseItems := make([]dto.PendingLikeItem, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, dto.PendingLikeItem{
			EntityID: item.EntityID,
			Action:   string(item.Action),
			LikedAt:  item.LikedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.PendingLikesResponse{Items: responseItems})
}

func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	err := h.service.Unmatch(r.Context(), parseInt64Param(r, "matchID"), identity.OwnerID)
	if err != nil {
		if errors.Is(err, matchessvc.ErrNotUnmatched) {
			writeConflict(w, "NOT_UNMATCHABLE", "match is not active or not matched")
			return
		}
		writeMatchError(w, err, "failed to unmatch")
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *MatchesHandler) SetArchived(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	var req dto.ArchiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	err := h.service.SetArchived(r.Context(), parseInt64Param(r, "matchID"), identity.OwnerID, req.Archived)
	if err != nil {
		writeMatchError(w, err, "failed to update archive state")
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK       bool `json:"ok"`
		Archived bool `json:"archived"`
	}{OK: true, Archived: req.Archived})
}

func (h *MatchesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	stats, err := h.service.Stats(r.Context(), identity.OwnerID)
	if err != nil {
		switch {
		case errors.Is(err, matchessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid stats request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load match stats")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.MatchStatsResponse{
		TotalMatched:    stats.TotalMatched,
		PendingIncoming: stats.PendingIncoming,
	})
}

func writeMatchError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, matchessvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid match request")
	case errors.Is(err, matchessvc.ErrMatchNotFound):
		writeNotFound(w, "MATCH_NOT_FOUND", "match not found")
	case errors.Is(err, matchessvc.ErrPermission):
		writeForbidden(w, "FORBIDDEN", "not a participant of this match")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}
