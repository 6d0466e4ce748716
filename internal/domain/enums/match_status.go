package enums

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusMatched  MatchStatus = "matched"
	MatchStatusDeclined MatchStatus = "declined"
	MatchStatusExpired  MatchStatus = "expired"
)

// Terminal reports whether the status can no longer change through the
// normal swipe flow.
func (s MatchStatus) Terminal() bool {
	switch s {
	case MatchStatusMatched, MatchStatusDeclined, MatchStatusExpired:
		return true
	default:
		return false
	}
}
