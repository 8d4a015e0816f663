package session

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError marks structurally invalid input. It is rejected
// immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientError marks a store-side infrastructure failure that is expected
// to clear on its own, such as the backing process being restarted mid-call.
// The resilient client retries these exactly once.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("session store %s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// transientSignatures are substrings of infrastructure errors known to mean
// the backing store process was restarted or hot-swapped under us.
var transientSignatures = []string{
	"store process reset",
	"code was updated",
	"connection reset by peer",
	"terminating connection due to administrator command", // pg 57P01
}

// IsTransient reports whether err carries the transient-infrastructure
// signature, either as a typed TransientError or by message match.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
