package pair

import "errors"

var (
	// ErrSelfPair is returned when both sides of a pair are the same entity.
	ErrSelfPair = errors.New("entity cannot be paired with itself")
	// ErrInvalidID is returned for non-positive entity ids.
	ErrInvalidID = errors.New("invalid entity id")
)

// Canonicalize maps an unordered entity pair onto its single storage
// orientation: the smaller id always comes first. Every match lookup and
// write goes through this so (A,B) and (B,A) land on the same row.
func Canonicalize(a, b int64) (low, high int64, err error) {
	if a <= 0 || b <= 0 {
		return 0, 0, ErrInvalidID
	}
	if a == b {
		return 0, 0, ErrSelfPair
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}
