package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrInputValidation      = errors.New("input is empty")
	ErrDelegation           = errors.New("delegation failed")
	ErrConfigurationMissing = errors.New("configuration is missing")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrUnknownRole          = errors.New("unknown agent role")
)
