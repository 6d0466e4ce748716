package enums

import "strings"

// SwipeAction is a directional decision one entity makes about another.
type SwipeAction string

const (
	SwipeActionLike      SwipeAction = "like"
	SwipeActionPass      SwipeAction = "pass"
	SwipeActionSuperLike SwipeAction = "super_like"
)

// ParseSwipeAction normalizes client input into a closed action value.
func ParseSwipeAction(raw string) (SwipeAction, bool) {
	switch SwipeAction(strings.ToLower(strings.TrimSpace(raw))) {
	case SwipeActionLike:
		return SwipeActionLike, true
	case SwipeActionPass:
		return SwipeActionPass, true
	case SwipeActionSuperLike:
		return SwipeActionSuperLike, true
	default:
		return "", false
	}
}

// State returns the per-side match column value for this action.
func (a SwipeAction) State() ActionState {
	return ActionState(a)
}

// ActionState is a per-side action column on a match row. It extends
// SwipeAction with the "no decision yet" state.
type ActionState string

const (
	ActionStatePending   ActionState = "pending"
	ActionStateLike      ActionState = "like"
	ActionStatePass      ActionState = "pass"
	ActionStateSuperLike ActionState = "super_like"
)

// Positive reports whether the side has recorded a like or super-like.
func (s ActionState) Positive() bool {
	return s == ActionStateLike || s == ActionStateSuperLike
}
