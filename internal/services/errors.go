package services

import "errors"

// Settlement error taxonomy. Configuration and mapping problems are kept
// distinct from balance problems because their recovery paths differ:
// balance errors are final for the calling transaction, mapping errors leave
// the message pending for redelivery, configuration errors need an operator.
var (
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrTokenNotWhitelisted      = errors.New("token is not whitelisted for deposit")
	ErrTransferFailed           = errors.New("token transfer failed")
	ErrUnmappedToken            = errors.New("no token mapping registered for origin token")
	ErrInsufficientAvailable    = errors.New("insufficient available balance")
	ErrInsufficientCustody      = errors.New("custodied balance below requested amount")
	ErrUnauthorizedSender       = errors.New("message sender is not the registered balance locker")
	ErrMappingExists            = errors.New("token mapping already exists")
	ErrMappingNotFound          = errors.New("token mapping not found")
	ErrChainNotRegistered       = errors.New("chain is not registered")
	ErrDestinationNotConfigured = errors.New("locker destination is not configured")
	ErrDecimalsMismatch         = errors.New("synthetic token decimals do not match mapping")
	ErrTokenExists              = errors.New("synthetic token already exists")
	ErrTokenNotFound            = errors.New("synthetic token not found")
)
