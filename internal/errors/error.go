// Package errors provides the error kinds and sentinel errors used by the order service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error carrying a message that is safe to return to the caller.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is reports whether target is the sentinel of the same kind.
// Sentinels are the values with an empty message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

var ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
var ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
var ErrForbidden = &Error{Kind: KindForbidden}
var ErrConflict = &Error{Kind: KindConflict}
var ErrNotFound = &Error{Kind: KindNotFound}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidRequest(format string, args ...any) error {
	return newError(KindInvalidRequest, format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return newError(KindUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

// KindOf returns the kind of the first classified error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// InternalErrorMessage is returned for every unclassified failure.
const InternalErrorMessage = "an unexpected error occurred"

// HTTPStatus maps err to a status code and a message for the response body.
// Unclassified errors never leak their text.
func HTTPStatus(err error) (int, string) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, InternalErrorMessage
	}
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest, e.Error()
	case KindUnauthenticated:
		return http.StatusUnauthorized, e.Error()
	case KindForbidden:
		return http.StatusForbidden, e.Error()
	case KindConflict:
		return http.StatusConflict, e.Error()
	case KindNotFound:
		return http.StatusNotFound, e.Error()
	default:
		return http.StatusInternalServerError, InternalErrorMessage
	}
}

// Store errors.

var ErrProductNotFound = errors.New("product not found")
var ErrInsufficientStock = errors.New("insufficient stock")

var ErrCreateOrder = errors.New("failed to create order")
var ErrCreateOrderLine = errors.New("failed to create order line")
var ErrDuplicateOrderLine = errors.New("order line already exists")
var ErrDuplicateOrder = errors.New("order already exists")

var ErrOrderNotFound = errors.New("order not found")
var ErrOrderLineNotFound = errors.New("order line not found")
var ErrFailedToFindOrder = errors.New("failed to find order")
var ErrFailedToFindOrders = errors.New("failed to find orders")
var ErrFailedToFindOrderLines = errors.New("failed to find order lines")
var ErrFailedToFindProducts = errors.New("failed to find products")

var ErrUpdateOrder = errors.New("failed to update order")
var ErrDeleteOrder = errors.New("failed to delete order")
var ErrUpdateStock = errors.New("failed to update stock")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
