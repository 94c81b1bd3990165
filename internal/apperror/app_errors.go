package apperror

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrPromoCodeNotFound = errors.New("invalid or expired promo code")
	ErrPromoCodeTaken    = errors.New("promo code already exists")
	ErrPromoCodeUsed     = errors.New("promo code already used")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidUserID     = errors.New("invalid user id")
)
