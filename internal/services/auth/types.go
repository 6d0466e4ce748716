package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

type AccessClaims struct {
	OwnerID   int64
	Role      string
	ExpiresAt time.Time
}
