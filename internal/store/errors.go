package store

import "errors"

var (
	ErrQueueEmpty         = errors.New("no waiting customers")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrCustomerNotWaiting = errors.New("customer not waiting")
	ErrStatusConflict     = errors.New("customer status changed concurrently")
	ErrCounterNotFound    = errors.New("counter not found")
	ErrCounterUnavailable = errors.New("counter unavailable")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrItemNotFound        = errors.New("transaction item not found")
	ErrDuplicateORNumber   = errors.New("or number already used")
)
