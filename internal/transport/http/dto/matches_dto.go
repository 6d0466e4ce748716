package dto

import "time"

type MatchesResponse struct {
	Items []MatchItem `json:"items"`
}

type PendingLikeItem struct {
	EntityID int64     `json:"entity_id"`
	Action   string    `json:"action"`
	LikedAt  time.Time `json:"liked_at"`
}

type PendingLikesResponse struct {
	Items []PendingLikeItem `json:"items"`
}

type MatchStatsResponse struct {
	TotalMatched    int `json:"total_matched"`
	PendingIncoming int `json:"pending_incoming"`
}

type ArchiveRequest struct {
	Archived bool `json:"archived"`
}
