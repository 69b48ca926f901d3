package service

import "fmt"

// Error is the taxonomy returned by the service: a human-readable message
// plus the status code the transport should answer with. Cache failures
// never become an Error; only the store and missing rows do.
type Error struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func (e *Error) Error() string {
	return e.Message
}

// NotFoundID reports a missing user by id.
func NotFoundID(id int) *Error {
	return &Error{
		Message:    fmt.Sprintf("User with ID %d not found", id),
		StatusCode: 404,
	}
}

// NotFoundEmail reports a missing user by email.
func NotFoundEmail(email string) *Error {
	return &Error{
		Message:    fmt.Sprintf("User with email %s not found", email),
		StatusCode: 404,
	}
}

// Internal wraps a store failure.
func Internal(err error) *Error {
	return &Error{
		Message:    fmt.Sprintf("Database error: %v", err),
		StatusCode: 500,
	}
}
