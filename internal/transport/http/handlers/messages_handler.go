package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/pacheco20222/DogMatch-backend/internal/services/auth"
	chatsvc "github.com/pacheco20222/DogMatch-backend/internal/services/chat"
	"github.com/pacheco20222/DogMatch-backend/internal/transport/http/dto"
	httperrors "github.com/pacheco20222/DogMatch-backend/internal/transport/http/errors"
)

type MessagesHandler struct {
	service *chatsvc.Service
}

func NewMessagesHandler(service *chatsvc.Service) *MessagesHandler {
	return &MessagesHandler{service: service}
}

// Send serves POST /matches/{matchID}/messages.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.Send(r.Context(), parseInt64Param(r, "matchID"), identity.OwnerID, req.Content, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, chatsvc.ErrEmptyContent):
			writeBadRequest(w, "VALIDATION_ERROR", "message content is required")
		case errors.Is(err, chatsvc.ErrContentTooLong):
			writeBadRequest(w, "VALIDATION_ERROR", "message content is too long")
		case errors.Is(err, chatsvc.ErrNotMatched):
			writeConflict(w, "CONVERSATION_CLOSED", "conversation is not open for messages")
		default:
			writeChatError(w, err, "failed to send message")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, mapMessage(msg))
}

// List serves GET /matches/{matchID}/messages?limit=&offset=.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)

	items, err := h.service.ListMessages(r.Context(), parseInt64Param(r, "matchID"), identity.OwnerID, limit, offset)
	if err != nil {
		writeChatError(w, err, "failed to load messages")
		return
	}

	responseItems := make([]dto.MessageItem, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, mapMessage(item))
	}

	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: responseItems})
}

// MarkRead serves POST /messages/read.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	var req dto.MarkReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if len(req.MessageIDs) == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "message_ids are required")
		return
	}

	count, err := h.service.MarkRead(r.Context(), req.MessageIDs, identity.OwnerID)
	if err != nil {
		writeChatError(w, err, "failed to mark messages read")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.MarkReadResponse{OK: true, MarkedRead: count})
}

// Delete serves DELETE /messages/{messageID}.
func (h *MessagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	err := h.service.Delete(r.Context(), parseInt64Param(r, "messageID"), identity.OwnerID)
	if err != nil {
		if errors.Is(err, chatsvc.ErrMessageNotFound) {
			writeNotFound(w, "MESSAGE_NOT_FOUND", "message not found")
			return
		}
		writeChatError(w, err, "failed to delete message")
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

// UnreadTotal serves GET /messages/unread-total.
func (h *MessagesHandler) UnreadTotal(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	count, err := h.service.UnreadTotal(r.Context(), identity.OwnerID)
	if err != nil {
		writeChatError(w, err, "failed to load unread total")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UnreadTotalResponse{Unread: count})
}

// Conversations serves GET /conversations?limit=.
func (h *MessagesHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)

	items, err := h.service.RecentConversations(r.Context(), identity.OwnerID, limit)
	if err != nil {
		writeChatError(w, err, "failed to load conversations")
		return
	}

	responseItems := make([]dto.ConversationItem, 0, len(items))
	for _, item := range items {
		conv := dto.ConversationItem{
			Match:       mapMatch(item.Match),
			UnreadCount: item.UnreadCount,
		}
		if item.LastMessage != nil {
			mapped := mapMessageRecord(*item.LastMessage)
			conv.LastMessage = &mapped
		}
		responseItems = append(responseItems, conv)
	}

	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: responseItems})
}

func writeChatError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, chatsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chat request")
	case errors.Is(err, chatsvc.ErrMatchNotFound):
		writeNotFound(w, "MATCH_NOT_FOUND", "match not found")
	case errors.Is(err, chatsvc.ErrPermission):
		writeForbidden(w, "FORBIDDEN", "not a participant of this match")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}
