package contract

import (
	"errors"

	"github.com/huangsam/cipette/schema"
)

// Sentinel errors shared across packages. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrInvalidDays        = errors.New("days must be greater than 0")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrRetriesExhausted   = errors.New("retries exhausted")
	ErrUnsupportedBackend = errors.New("unsupported database backend")
	ErrStoreClosed        = errors.New("store is closed")
	ErrInvalidRecord      = schema.ErrInvalidRecord
)
