package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict on create.
	ErrAlreadyExists = errors.New("already exists")

	ErrInvalidLine = errors.New("invalid cart line")
	ErrEmptyCart   = errors.New("cart is empty")

	ErrAuthorizationCreateFailed = errors.New("authorization create failed")
	ErrAuthorizationTimeout      = errors.New("authorization timed out")
	ErrPaymentDeclined           = errors.New("payment declined")
	ErrRedirectHandleUnknown     = errors.New("redirect handle unknown")
	ErrRedirectHandleMissing     = errors.New("redirect handle missing")

	ErrInvalidTransition   = errors.New("invalid checkout transition")
	ErrCheckoutUnavailable = errors.New("checkout unavailable")
)
