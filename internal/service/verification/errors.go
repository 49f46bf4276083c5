package verification

import "errors"

var (
	ErrSessionNotFound = errors.New("verification session not found or expired")
	ErrInvalidStep     = errors.New("operation not valid for the session's current step")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPhone    = errors.New("invalid phone number, expected E.164")
	ErrResendTooSoon   = errors.New("resend requested before the cool-down elapsed")
	ErrInvalidOTP      = errors.New("incorrect verification code")
	ErrOTPExpired      = errors.New("verification code expired")
	ErrOTPLocked       = errors.New("verification attempts exhausted, session abandoned")
	ErrConsentRequired = errors.New("explicit consent is required to complete enrollment")
)
