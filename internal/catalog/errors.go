package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Gateway failure classes.
var (
	ErrNotFound      = errors.New("not found")
	ErrNetwork       = errors.New("network error")
	ErrMalformedData = errors.New("malformed data")
)

// ErrorKind classifies a lane failure.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindNetwork   ErrorKind = "network"
	KindMalformed ErrorKind = "malformed_data"
)

// KindOf classifies err. Anything that is not a recognised gateway failure is
// a network error.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMalformedData):
		return KindMalformed
	default:
		return KindNetwork
	}
}

// Display returns the kind shown to users. Malformed responses fail closed and
// are shown as network errors.
func (k ErrorKind) Display() ErrorKind {
	if k == KindMalformed {
		return KindNetwork
	}
	return k
}

// Lane names.
const (
	LaneCategory = "category"
	LaneProducts = "products"
	LaneWishlist = "wishlist"
)

// LaneError is the user-facing error of a failed lane.
type LaneError struct {
	Lane    string    `json:"lane"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *LaneError) Error() string {
	return fmt.Sprintf("%s: %s", e.Lane, e.Message)
}

func (e *LaneError) Unwrap() error {
	return e.Err
}

// NewLaneError builds the attributable error for a failed category or
// products lane.
func NewLaneError(lane string, err error) *LaneError {
	kind := KindOf(err).Display()
	var msg string
	switch {
	case lane == LaneCategory && kind == KindNotFound:
		msg = "Category not found"
	case lane == LaneCategory:
		msg = "Error loading category"
	default:
		msg = "Error loading products"
	}
	return &LaneError{Lane: lane, Kind: kind, Message: msg, Err: err}
}

// IsCanceled reports whether err is the result of a cancelled fetch.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
