package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound         = errors.New("campaign not found")
	ErrTemplateNotFound = errors.New("referenced template not found")
	ErrInvalidState     = errors.New("operation not allowed in the campaign's current status")
)
