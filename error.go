package lob

import "errors"

var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInvalidPrice         = errors.New("limit price must be greater than zero")
	ErrDuplicateOrderID     = errors.New("order id already exists in the book")
	ErrUnsupportedOrderType = errors.New("order type is not supported by the matching core")
	ErrSequenceGap          = errors.New("book log sequence gap detected")
	ErrNotFound             = errors.New("not found")
)
