package models

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyDone = errors.New("already done")
)
