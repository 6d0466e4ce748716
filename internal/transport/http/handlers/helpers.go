package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
	chatsvc "github.com/pacheco20222/DogMatch-backend/internal/services/chat"
	"github.com/pacheco20222/DogMatch-backend/internal/transport/http/dto"
	httperrors "github.com/pacheco20222/DogMatch-backend/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func parseInt64Param(r *http.Request, name string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusForbidden, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeConflict(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func mapMatch(rec pgrepo.MatchRecord) dto.MatchItem {
	return dto.MatchItem{
		ID:            rec.ID,
		LowID:         rec.LowID,
		HighID:        rec.HighID,
		Status:        string(rec.Status),
		LowAction:     string(rec.LowAction),
		HighAction:    string(rec.HighAction),
		InitiatedBy:   rec.InitiatedBy,
		CreatedAt:     rec.CreatedAt,
		MatchedAt:     rec.MatchedAt,
		ExpiresAt:     rec.ExpiresAt,
		LastMessageAt: rec.LastMessageAt,
		MessageCount:  rec.MessageCount,
		IsActive:      rec.IsActive,
		IsArchived:    rec.IsArchived,
	}
}

func mapMessage(msg chatsvc.Message) dto.MessageItem {
	return dto.MessageItem{
		ID:            msg.ID,
		MatchID:       msg.MatchID,
		SenderOwnerID: msg.SenderOwnerID,
		Content:       msg.Content,
		Type:          string(msg.Type),
		IsRead:        msg.IsRead,
		ReadAt:        msg.ReadAt,
		SentAt:        msg.SentAt,
		IsDeleted:     msg.IsDeleted,
	}
}

func mapMessageRecord(rec pgrepo.MessageRecord) dto.MessageItem {
	item := dto.MessageItem{
		ID:            rec.ID,
		MatchID:       rec.MatchID,
		SenderOwnerID: rec.SenderOwnerID,
		Content:       rec.Content,
		Type:          string(rec.Type),
		IsRead:        rec.IsRead,
		ReadAt:        rec.ReadAt,
		SentAt:        rec.SentAt,
		IsDeleted:     rec.IsDeleted,
	}
	if rec.IsDeleted {
		item.Content = ""
	}
	return item
}
