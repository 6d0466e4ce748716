package dto

import "time"

type SwipeRequest struct {
	EntityID int64  `json:"entity_id"`
	TargetID int64  `json:"target_id"`
	Action   string `json:"action"`
}

type SwipeResponse struct {
	OK           bool      `json:"ok"`
	MatchCreated bool      `json:"match_created"`
	Match        MatchItem `json:"match"`
}

type MatchItem struct {
	ID            int64      `json:"id"`
	LowID         int64      `json:"low_id"`
	HighID        int64      `json:"high_id"`
	Status        string     `json:"status"`
	LowAction     string     `json:"low_action"`
	HighAction    string     `json:"high_action"`
	InitiatedBy   int64      `json:"initiated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	MatchedAt     *time.Time `json:"matched_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MessageCount  int        `json:"message_count"`
	IsActive      bool       `json:"is_active"`
	IsArchived    bool       `json:"is_archived"`
}
