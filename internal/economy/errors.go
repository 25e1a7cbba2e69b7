package economy

import "errors"

// Business-rule failures. Every operation validates against the current
// store state before writing anything, so a returned error means no
// mutation happened.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyOwned      = errors.New("card already owned")
	ErrAlreadyClaimed    = errors.New("task already claimed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMaxLevel          = errors.New("max level reached")
	ErrInvalidInput      = errors.New("invalid input")
)
