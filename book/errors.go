package book

import "errors"

// Sentinel errors returned by synchronous Engine operations.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotOpen        = errors.New("order is not open")
	ErrOrderNotLimit       = errors.New("order is not a limit order")
	ErrNoOpposingLiquidity = errors.New("no opposing liquidity for market order")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrArenaFull           = errors.New("order arena is full")
)
