package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
)

// Policy holds the tunable OTP and session parameters.
type Policy struct {
	CodeLength      int
	CodeTTL         time.Duration
	MaxAttempts     int
	ResendCooldown  time.Duration
	SessionTTL      time.Duration
	PhoneOTPChannel domain.Channel
}

// DefaultPolicy returns the production OTP policy.
func DefaultPolicy() Policy {
	return Policy{
		CodeLength:      6,
		CodeTTL:         10 * time.Minute,
		MaxAttempts:     3,
		ResendCooldown:  60 * time.Second,
		SessionTTL:      30 * time.Minute,
		PhoneOTPChannel: domain.ChannelWhatsApp,
	}
}

// Registry is the slice of the subscriber service the manager commits
// through.
type Registry interface {
	Get(ctx context.Context, id string) (*domain.Subscriber, error)
	UpsertDraft(ctx context.Context, email, phone string) (*subscriber.Draft, error)
	CommitVerified(ctx context.Context, d *subscriber.Draft, verified []domain.Channel, prefs domain.Preferences) (*domain.Subscriber, error)
}

// Manager drives verification sessions through the enrollment state machine.
type Manager struct {
	store    SessionStore
	registry Registry
	sender   CodeSender
	policy   Policy

	now func() time.Time
}

func NewManager(store SessionStore, registry Registry, sender CodeSender, policy Policy) *Manager {
	if policy.CodeLength == 0 {
		policy = DefaultPolicy()
	}
	return &Manager{
		store:    store,
		registry: registry,
		sender:   sender,
		policy:   policy,
		now:      time.Now,
	}
}

// RequestEmailOTP starts a session (empty sessionID) or resends the email
// code for an existing one. The returned session carries the id the caller
// must present for every subsequent step.
func (m *Manager) RequestEmailOTP(ctx context.Context, sessionID, email string) (*domain.VerificationSession, error) {
	var sess *domain.VerificationSession
	if sessionID == "" {
		if !domain.ValidEmail(email) {
			return nil, ErrInvalidEmail
		}
		now := m.now()
		sess = &domain.VerificationSession{
			ID:         uuid.New().String(),
			DraftEmail: email,
			Step:       domain.StepAwaitingEmail,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	} else {
		var err error
		sess, err = m.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.Step != domain.StepAwaitingEmail && sess.Step != domain.StepAwaitingEmailOTP {
			return nil, ErrInvalidStep
		}
	}

	if err := m.issue(ctx, sess, &sess.EmailOTP, domain.ChannelEmail, sess.DraftEmail); err != nil {
		return nil, err
	}
	sess.Step = domain.StepAwaitingEmailOTP
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	logger.Info("email otp issued", "session_id", sess.ID, "email", logger.RedactEmail(sess.DraftEmail))
	return sess, nil
}

// VerifyEmailOTP checks the submitted code against the stored hash and
// advances the session to the phone step on success.
func (m *Manager) VerifyEmailOTP(ctx context.Context, sessionID, code string) (*domain.VerificationSession, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step == domain.StepAbandoned {
		return nil, ErrOTPLocked
	}
	if sess.Step != domain.StepAwaitingEmailOTP {
		return nil, ErrInvalidStep
	}
	if err := m.check(ctx, sess, sess.EmailOTP, code); err != nil {
		return nil, err
	}
	sess.EmailOTP = nil
	sess.Step = domain.StepAwaitingPhone
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// RequestPhoneOTP records the draft phone number and sends a code over the
// configured phone channel. Valid from awaiting_phone, or from
// awaiting_phone_otp as a resend.
func (m *Manager) RequestPhoneOTP(ctx context.Context, sessionID, phone string) (*domain.VerificationSession, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Step {
	case domain.StepAwaitingPhone:
		if !domain.ValidPhone(phone) {
			return nil, ErrInvalidPhone
		}
		sess.DraftPhone = phone
	case domain.StepAwaitingPhoneOTP:
		// Resend reuses the number already on the session.
	default:
		return nil, ErrInvalidStep
	}

	if err := m.issue(ctx, sess, &sess.PhoneOTP, m.policy.PhoneOTPChannel, sess.DraftPhone); err != nil {
		return nil, err
	}
	sess.Step = domain.StepAwaitingPhoneOTP
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	logger.Info("phone otp issued", "session_id", sess.ID, "phone", logger.RedactPhone(sess.DraftPhone))
	return sess, nil
}

// VerifyPhoneOTP checks the phone code and advances to the consent step.
func (m *Manager) VerifyPhoneOTP(ctx context.Context, sessionID, code string) (*domain.VerificationSession, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step == domain.StepAbandoned {
		return nil, ErrOTPLocked
	}
	if sess.Step != domain.StepAwaitingPhoneOTP {
		return nil, ErrInvalidStep
	}
	if err := m.check(ctx, sess, sess.PhoneOTP, code); err != nil {
		return nil, err
	}
	sess.PhoneOTP = nil
	sess.Step = domain.StepAwaitingConsent
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// Commit finishes enrollment: it requires explicit consent, writes the
// subscriber through the registry and marks the session committed. A session
// that is already committed returns the subscriber it produced, so retries
// after a lost response are safe. A registry conflict leaves the session
// untouched so the caller can resolve and retry.
func (m *Manager) Commit(ctx context.Context, sessionID string, prefs domain.Preferences, consent bool) (*domain.Subscriber, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step == domain.StepCommitted {
		return m.registry.Get(ctx, sess.SubscriberID)
	}
	if sess.Step != domain.StepAwaitingConsent {
		return nil, ErrInvalidStep
	}
	if !consent {
		return nil, ErrConsentRequired
	}

	draft, err := m.registry.UpsertDraft(ctx, sess.DraftEmail, sess.DraftPhone)
	if err != nil {
		return nil, err
	}
	channels := []domain.Channel{domain.ChannelEmail, m.policy.PhoneOTPChannel}
	sub, err := m.registry.CommitVerified(ctx, draft, channels, prefs)
	if err != nil {
		return nil, err
	}

	sess.SubscriberID = sub.ID
	sess.Step = domain.StepCommitted
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	logger.Info("enrollment committed", "session_id", sess.ID, "subscriber_id", sub.ID)
	return sub, nil
}

// Session returns the current state of a session.
func (m *Manager) Session(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	return m.load(ctx, sessionID)
}

func (m *Manager) load(ctx context.Context, id string) (*domain.VerificationSession, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	return m.store.Get(ctx, id)
}

// issue generates a fresh code for one channel, enforcing the resend
// cool-down against the challenge already on the session.
func (m *Manager) issue(ctx context.Context, sess *domain.VerificationSession, slot **domain.OTPChallenge, channel domain.Channel, recipient string) error {
	now := m.now()
	if *slot != nil && now.Sub((*slot).LastSentAt) < m.policy.ResendCooldown {
		return ErrResendTooSoon
	}

	code, err := generateCode(m.policy.CodeLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := m.sender.SendCode(ctx, channel, recipient, code); err != nil {
		return fmt.Errorf("deliver otp: %w", err)
	}
	*slot = &domain.OTPChallenge{
		CodeHash:          hashCode(code),
		ExpiresAt:         now.Add(m.policy.CodeTTL),
		AttemptsRemaining: m.policy.MaxAttempts,
		LastSentAt:        now,
	}
	return nil
}

// check validates a submitted code against a challenge, decrementing the
// attempt counter on mismatch and abandoning the session when attempts run
// out. Expiry wins over the counter: an expired code never burns an attempt.
func (m *Manager) check(ctx context.Context, sess *domain.VerificationSession, otp *domain.OTPChallenge, code string) error {
	if otp == nil {
		return ErrInvalidStep
	}
	if m.now().After(otp.ExpiresAt) {
		return ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(otp.CodeHash)) == 1 {
		return nil
	}

	otp.AttemptsRemaining--
	if otp.AttemptsRemaining <= 0 {
		sess.Step = domain.StepAbandoned
		sess.UpdatedAt = m.now()
		if err := m.store.Put(ctx, sess); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
		logger.Warn("otp attempts exhausted", "session_id", sess.ID)
		return ErrOTPLocked
	}
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return ErrInvalidOTP
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	buf := make([]byte, 1)
	for i := 0; i < length; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		// Reject bytes >= 250 so every digit is equally likely.
		if buf[0] >= 250 {
			continue
		}
		digits[i] = '0' + buf[0]%10
		i++
	}
	return string(digits), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
