package app

import (
	"fmt"
	"net/http"
)

// DomainError carries an HTTP status and a stable machine code so
// handlers can map service failures onto the wire without matching on
// error strings.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// errSessionNotFound is the lookup miss every per-session route shares.
// Expired sessions report the same way as ids that never existed.
func errSessionNotFound() *DomainError {
	return domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Compose session not found", nil)
}
