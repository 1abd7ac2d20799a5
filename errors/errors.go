package errors

import (
	// Go Internal Packages
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error so callers can react without string matching.
type Kind uint8

const (
	Other Kind = iota
	Invalid
	Unavailable
	Internal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Unavailable:
		return "unavailable"
	case Internal:
		return "internal"
	}
	return "other"
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E builds an *Error of the given kind wrapping err.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// ValidationErrors collects field level problems, keyed by field path.
type ValidationErrors map[string][]string

func ValidationErrs() ValidationErrors {
	return ValidationErrors{}
}

func (ve ValidationErrors) Add(field, msg string) {
	ve[field] = append(ve[field], msg)
}

// Err returns nil when nothing was added.
func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

func (ve ValidationErrors) Error() string {
	fields := make([]string, 0, len(ve))
	for field := range ve {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s %s", field, strings.Join(ve[field], ", ")))
	}
	return strings.Join(parts, "; ")
}

// Is, As and Join re-export the standard helpers so callers importing this
// package under the errors name keep them.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
	New  = errors.New
)
