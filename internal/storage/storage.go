package storage

import "errors"

const (
	UniqueViolation = "23505"
)

var (
	ErrProductAlreadyTracked = errors.New("this product is already tracked")
	ErrProductNotFound       = errors.New("product not found")
)
