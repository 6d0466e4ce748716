package dto

import "time"

type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

type MessageItem struct {
	ID            int64      `json:"id"`
	MatchID       int64      `json:"match_id"`
	SenderOwnerID int64      `json:"sender_owner_id"`
	Content       string     `json:"content"`
	Type          string     `json:"type"`
	IsRead        bool       `json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	SentAt        time.Time  `json:"sent_at"`
	IsDeleted     bool       `json:"is_deleted"`
}

type MessagesResponse struct {
	Items []MessageItem `json:"items"`
}

type MarkReadRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

type MarkReadResponse struct {
	OK         bool `json:"ok"`
	MarkedRead int  `json:"marked_read"`
}

type UnreadTotalResponse struct {
	Unread int `json:"unread"`
}

type ConversationItem struct {
	Match       MatchItem    `json:"match"`
	LastMessage *MessageItem `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}

type ConversationsResponse struct {
	Items []ConversationItem `json:"items"`
}
