package domain

import "time"

// VerificationStep enumerates the states of the enrollment state machine.
type VerificationStep string

const (
	StepAwaitingEmail    VerificationStep = "awaiting_email"
	StepAwaitingEmailOTP VerificationStep = "awaiting_email_otp"
	StepAwaitingPhone    VerificationStep = "awaiting_phone"
	StepAwaitingPhoneOTP VerificationStep = "awaiting_phone_otp"
	StepAwaitingConsent  VerificationStep = "awaiting_consent"
	StepCommitted        VerificationStep = "committed"
	StepAbandoned        VerificationStep = "abandoned"
)

// IsTerminal reports whether the session can no longer advance.
func (s VerificationStep) IsTerminal() bool {
	return s == StepCommitted || s == StepAbandoned
}

// OTPChallenge holds a pending one-time code for a single channel. Only the
// hash of the code is ever stored; the plaintext exists solely in the
// delivery message.
type OTPChallenge struct {
	CodeHash          string    `json:"code_hash"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	LastSentAt        time.Time `json:"last_sent_at"`
}

// VerificationSession is the persisted state of one enrollment in progress.
// It is pure data plus transitions so it can survive page reloads; the
// session manager owns all mutation.
type VerificationSession struct {
	ID           string           `json:"id"`
	DraftEmail   string           `json:"draft_email"`
	DraftPhone   string           `json:"draft_phone"`
	EmailOTP     *OTPChallenge    `json:"email_otp,omitempty"`
	PhoneOTP     *OTPChallenge    `json:"phone_otp,omitempty"`
	Step         VerificationStep `json:"step"`
	SubscriberID string           `json:"subscriber_id,omitempty"` // set on commit
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
