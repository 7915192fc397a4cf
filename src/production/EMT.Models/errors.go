package emtmodels

import "errors"

var (
	// ErrNoDataFound is returned by single-result queries that matched zero rows.
	ErrNoDataFound = errors.New("no data found")

	// ErrInvalidQuantityType is returned when a request names an unknown quantity.
	ErrInvalidQuantityType = errors.New("invalid quantity type")

	// ErrUserAlreadyRegistered is returned when the username or email is taken.
	ErrUserAlreadyRegistered = errors.New("user already registered")

	// ErrUserNotFound is returned when a user lookup matches no row.
	ErrUserNotFound = errors.New("user not found")

	// ErrWrongPassword is returned when credential verification fails.
	ErrWrongPassword = errors.New("wrong password")
)
