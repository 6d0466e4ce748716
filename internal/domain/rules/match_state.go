package rules

import "github.com/pacheco20222/DogMatch-backend/internal/domain/enums"

// NextStatus resolves the match state machine from the two per-side actions.
// A pass from either side is decisive even while the other side is still
// pending; a mutual positive pair (like or super-like on both sides) is a
// match; anything else stays pending.
func NextStatus(low, high enums.ActionState) enums.MatchStatus {
	if low == enums.ActionStatePass || high == enums.ActionStatePass {
		return enums.MatchStatusDeclined
	}
	if low.Positive() && high.Positive() {
		return enums.MatchStatusMatched
	}
	return enums.MatchStatusPending
}
