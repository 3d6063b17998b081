package service

import (
	"errors"
	"fmt"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

var (
	ErrOutOfStock         = errors.New("out of stock")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrOverflow           = errors.New("item overflow")
	ErrNotInitialized     = errors.New("ledger not initialized")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrCorruptValue       = errors.New("corrupt stored value")
)

type OutOfStockError struct {
	Item domain.Item
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("item %s is out of stock", e.Item)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

type UnauthorizedError struct {
	Sender string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s is not the ledger owner", e.Sender)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

type OverflowError struct {
	Item   domain.Item
	Amount uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("overflow while refilling item %s with %d amount", e.Item, e.Amount)
}

func (e *OverflowError) Unwrap() error { return ErrOverflow }
