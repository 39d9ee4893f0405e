package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidQuantity       Code = "INVALID_QUANTITY"
	CodeSlotConflict          Code = "SLOT_CONFLICT"
	CodeDuplicateReservation  Code = "DUPLICATE_RESERVATION"
	CodeNotRemovable          Code = "NOT_REMOVABLE"
	CodeEmptyCartCommit       Code = "EMPTY_CART_COMMIT"
	CodeNoActiveSession       Code = "NO_ACTIVE_SESSION"
	CodeInsufficientPayment   Code = "INSUFFICIENT_PAYMENT"
	CodeRemoteConflict        Code = "REMOTE_CONFLICT"
	CodeRemoteUnavailable     Code = "REMOTE_UNAVAILABLE"
	CodeInvalidDiscount       Code = "INVALID_DISCOUNT"
	CodeInvalidOrderType      Code = "INVALID_ORDER_TYPE"
	CodeLocationRequired      Code = "LOCATION_REQUIRED"
	CodeUnknownProduct        Code = "UNKNOWN_PRODUCT"
	CodeUnknownRoom           Code = "UNKNOWN_ROOM"
	CodeUnknownPackage        Code = "UNKNOWN_PACKAGE"
	CodePaymentMethodRequired Code = "PAYMENT_METHOD_REQUIRED"
	CodeCommitInFlight        Code = "COMMIT_IN_FLIGHT"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
	CodeNotFound              Code = "NOT_FOUND"
)

// Error carries a taxonomy code. Two errors match under errors.Is when
// their codes are equal, so the sentinels below work with wrapped errors.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Code)
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidQuantity       = &Error{Code: CodeInvalidQuantity}
	ErrSlotConflict          = &Error{Code: CodeSlotConflict}
	ErrDuplicateReservation  = &Error{Code: CodeDuplicateReservation}
	ErrNotRemovable          = &Error{Code: CodeNotRemovable}
	ErrEmptyCartCommit       = &Error{Code: CodeEmptyCartCommit}
	ErrNoActiveSession       = &Error{Code: CodeNoActiveSession}
	ErrInsufficientPayment   = &Error{Code: CodeInsufficientPayment}
	ErrRemoteConflict        = &Error{Code: CodeRemoteConflict}
	ErrRemoteUnavailable     = &Error{Code: CodeRemoteUnavailable}
	ErrInvalidDiscount       = &Error{Code: CodeInvalidDiscount}
	ErrInvalidOrderType      = &Error{Code: CodeInvalidOrderType}
	ErrLocationRequired      = &Error{Code: CodeLocationRequired}
	ErrUnknownProduct        = &Error{Code: CodeUnknownProduct}
	ErrUnknownRoom           = &Error{Code: CodeUnknownRoom}
	ErrUnknownPackage        = &Error{Code: CodeUnknownPackage}
	ErrPaymentMethodRequired = &Error{Code: CodePaymentMethodRequired}
	ErrCommitInFlight        = &Error{Code: CodeCommitInFlight}
	ErrInvalidTransition     = &Error{Code: CodeInvalidTransition}
	ErrNotFound              = &Error{Code: CodeNotFound}
)

func E(code Code, msg string) *Error { return &Error{Code: code, Msg: msg} }

func Ef(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf returns the taxonomy code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRemote reports whether err came from a collaborator call rather than local validation.
func IsRemote(err error) bool {
	c := CodeOf(err)
	return c == CodeRemoteConflict || c == CodeRemoteUnavailable
}
