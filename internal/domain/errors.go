package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ConfigurationError signals incomplete or invalid reference data. It is fatal
// for the operation and must not be retried.
type ConfigurationError struct {
	GoalType      GoalType
	HorizonMonths int
	Message       string
}

func (e *ConfigurationError) Error() string {
	if e.GoalType != "" {
		return fmt.Sprintf("configuration error: %s (goal type %s, horizon %d months)", e.Message, e.GoalType, e.HorizonMonths)
	}
	return "configuration error: " + e.Message
}

// InsufficientFundsError is returned when a withdrawal exceeds the goal's current balance.
type InsufficientFundsError struct {
	GoalID    int64
	Requested float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in goal %d: requested %.2f, available %.2f", e.GoalID, e.Requested, e.Available)
}

// ValidationError represents malformed input rejected before any computation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
