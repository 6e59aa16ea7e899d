package domain

import "errors"

var (
	ErrGraphNotFound = errors.New("graph not found")
	ErrNodeNotFound  = errors.New("node not found")
)
