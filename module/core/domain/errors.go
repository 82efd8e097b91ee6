package domain

import (
	"errors"
	"strings"
)

var (
	ErrPositionNotFound = errors.New("no position reported for carrier")
	ErrPlaceNotFound    = errors.New("place not found")
)

// ValidationError lists the report fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid telemetry: " + strings.Join(e.Fields, ", ")
}
