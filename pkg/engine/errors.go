package engine

import "errors"

// Rejections are reported synchronously to the submitter and never touch the
// book. None of them is fatal to the engine.
var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrInvalidSymbol = errors.New("unknown symbol")
	ErrOrderNotFound = errors.New("order not found")
	ErrNotOwner      = errors.New("order not owned by requester")
)
