package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrUnknownStore indicates an unsupported store kind.
	ErrUnknownStore = errors.New("config: unknown store kind")
)
