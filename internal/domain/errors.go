package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateReceipt = errors.New("duplicate receipt")
	ErrReceiptAnchored  = errors.New("receipt already anchored")
	ErrSigningKey       = errors.New("signing key unavailable")
	ErrNotSerializable  = errors.New("value not serializable")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrStorage          = errors.New("storage unavailable")
)
