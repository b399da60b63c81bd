package user

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a user operation.
type Kind int

const (
	KindMalformedInput Kind = iota + 1
	KindInvalidIdentifier
	KindSerialization
	KindDeserialization
	KindIdentifierAssignment
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "Invalid JSON input"
	case KindInvalidIdentifier:
		return "Invalid object id"
	case KindSerialization:
		return "Serialization error"
	case KindDeserialization:
		return "Deserialization error"
	case KindIdentifierAssignment:
		return "Object ID error"
	case KindStorage:
		return "Database error"
	}
	return "Unknown error"
}

// Error is the single error type returned by record, gateway and bulk operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrMalformedInput       = &Error{Kind: KindMalformedInput}
	ErrInvalidIdentifier    = &Error{Kind: KindInvalidIdentifier}
	ErrSerialization        = &Error{Kind: KindSerialization}
	ErrDeserialization      = &Error{Kind: KindDeserialization}
	ErrIdentifierAssignment = &Error{Kind: KindIdentifierAssignment}
	ErrStorage              = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Errorf builds an *Error of the given kind with a formatted message.
// A %w verb in format is preserved as the wrapped error.
func Errorf(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), Err: errors.Unwrap(err)}
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// MalformedInput converts a JSON parsing or validation error.
func MalformedInput(err error) error { return wrap(KindMalformedInput, err) }

// InvalidIdentifier converts an ObjectID parsing error.
func InvalidIdentifier(err error) error { return wrap(KindInvalidIdentifier, err) }

// SerializationFailure converts a BSON encoding error.
func SerializationFailure(err error) error { return wrap(KindSerialization, err) }

// DeserializationFailure converts a BSON decoding error.
func DeserializationFailure(err error) error { return wrap(KindDeserialization, err) }

// IdentifierAssignmentFailure converts an error attaching a storage issued id.
func IdentifierAssignmentFailure(err error) error { return wrap(KindIdentifierAssignment, err) }

// StorageFailure converts a driver error (connection, query, cursor).
func StorageFailure(err error) error { return wrap(KindStorage, err) }

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
