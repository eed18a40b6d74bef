package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrStorage      = errors.New("domain: storage unavailable")
	ErrInvalidPart  = errors.New("domain: invalid message part")
)
