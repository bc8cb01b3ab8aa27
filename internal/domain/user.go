// Package domain contains entity types without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxUserIDLen = 64

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

// UserID is the externally supplied token identifying a logical user.
// It is not unique per connection; one user may hold many connections.
type UserID string

// ConnID identifies one live transport session. It is minted by the
// transport when the session is accepted and dies with it.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// ParseUserID normalizes a raw user token from the wire.
func ParseUserID(raw string) (UserID, error) {
	if len(raw) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(raw), nil
}
