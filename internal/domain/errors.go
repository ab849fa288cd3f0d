package domain

import "errors"

var (
	ErrInvalidFilter     = errors.New("invalid metadata filter")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrIndexNotFound     = errors.New("index not found")
)
