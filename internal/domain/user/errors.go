package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicateKey = errors.New("user with this email already exists")

	// ErrNoMatch is returned by conditional redemptions when no record
	// satisfied the predicate.
	ErrNoMatch = errors.New("no matching record")
)
