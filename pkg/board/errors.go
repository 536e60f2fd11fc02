package board

import "errors"

// Error taxonomy for document mutation and remote application.
//
// None of these are fatal to a session: mutation failures surface as Result
// values that callers branch on, and malformed entries are logged and skipped
// during remote application. The worst case anywhere is a dropped mutation.
var (
	// ErrCapacityExceeded is returned when a creation would push the live
	// object count past MaxObjects.
	ErrCapacityExceeded = errors.New("document is at object capacity")

	// ErrNotFound is returned when an update, delete or reparent targets an
	// ID that is not present in the document.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidRelationship is returned when a reparent would nest a frame
	// inside a frame.
	ErrInvalidRelationship = errors.New("invalid object relationship")

	// ErrMalformedEntry is returned when a document value fails schema
	// validation during decode.
	ErrMalformedEntry = errors.New("malformed document entry")
)

// IsNotFound returns true if the error indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCapacityExceeded returns true if the error indicates the document is full.
func IsCapacityExceeded(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsMalformed returns true if the error indicates a value that failed schema
// validation.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedEntry)
}
