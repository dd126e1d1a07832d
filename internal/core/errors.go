package core

import (
	"errors"
	"fmt"
)

type (
	// MalformedInputError reports a source that cannot be turned into a
	// table at all. Processing of that input stops.
	MalformedInputError struct {
		Reason string
	}

	// UnknownFieldError reports a field that does not exist, is absent from
	// the loaded table, or is not permitted in the role it was asked for.
	UnknownFieldError struct {
		Name string
		Role string
	}
)

// ErrNoDataset is returned when an operation needs a table and none has
// been loaded yet.
var ErrNoDataset = errors.New("no dataset loaded")

func (e *MalformedInputError) Error() string {
	return "malformed input: " + e.Reason
}

func (e *UnknownFieldError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("unknown field %q", e.Name)
	}
	return fmt.Sprintf("unknown %s field %q", e.Role, e.Name)
}

// IsUnknownField reports whether err carries an *UnknownFieldError.
func IsUnknownField(err error) bool {
	var target *UnknownFieldError
	return errors.As(err, &target)
}

// IsMalformedInput reports whether err carries a *MalformedInputError.
func IsMalformedInput(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}
