package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")
	ErrIllegalRoute    = errors.New("illegal route transition")
	ErrPromptMissing   = errors.New("required prompt is missing")
)
