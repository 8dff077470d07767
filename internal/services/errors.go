package services

import "errors"

var (
	ErrReturnNotFound = errors.New("return request not found")
	ErrOrderNotFound  = errors.New("order not found")

	ErrSKUNotInOrder     = errors.New("sku not found in order")
	ErrNotOrderOwner     = errors.New("order does not belong to customer")
	ErrInvalidQuantity   = errors.New("return quantity must be positive")
	ErrQuantityExceeds   = errors.New("return quantity cannot exceed ordered quantity")
	ErrDuplicateReturn   = errors.New("return request already exists for this order and sku")
	ErrNotEligible       = errors.New("return request is not eligible")
	ErrInvalidTransition = errors.New("operation not allowed in current return status")
	ErrRefundFailed      = errors.New("refund processing failed")
)
