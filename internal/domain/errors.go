package domain

import "errors"

// Errors shared by services and the public facade.
var (
	ErrNoAccount       = errors.New("no account on this instance")
	ErrAccountExists   = errors.New("an account already exists on this instance")
	ErrDeviceExpired   = errors.New("device keys are expired")
	ErrNoAccess        = errors.New("no key for this device")
	ErrForbidden       = errors.New("missing right for this operation")
	ErrUnknownSession  = errors.New("unknown session")
	ErrUnknownGroup    = errors.New("unknown group")
	ErrInvalidArgument = errors.New("invalid argument")
)
