package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]domain.VerificationSession
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]domain.VerificationSession)}
}

func (m *memStore) Get(_ context.Context, id string) (*domain.VerificationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := s
	if s.EmailOTP != nil {
		otp := *s.EmailOTP
		cp.EmailOTP = &otp
	}
	if s.PhoneOTP != nil {
		otp := *s.PhoneOTP
		cp.PhoneOTP = &otp
	}
	return &cp, nil
}

func (m *memStore) Put(_ context.Context, s *domain.VerificationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// captureSender records the last plaintext code per channel.
type captureSender struct {
	mu    sync.Mutex
	codes map[domain.Channel]string
	sent  int
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: make(map[domain.Channel]string)}
}

func (c *captureSender) SendCode(_ context.Context, ch domain.Channel, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[ch] = code
	c.sent++
	return nil
}

func (c *captureSender) last(ch domain.Channel) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[ch]
}

// fakeRegistry is a minimal Registry that records a single committed
// subscriber.
type fakeRegistry struct {
	committed *domain.Subscriber
	commits   int
}

func (f *fakeRegistry) Get(_ context.Context, id string) (*domain.Subscriber, error) {
	if f.committed != nil && f.committed.ID == id {
		return f.committed, nil
	}
	return nil, subscriber.ErrNotFound
}

func (f *fakeRegistry) UpsertDraft(_ context.Context, email, phone string) (*subscriber.Draft, error) {
	return &subscriber.Draft{Email: email, Phone: phone}, nil
}

func (f *fakeRegistry) CommitVerified(_ context.Context, d *subscriber.Draft, verified []domain.Channel, prefs domain.Preferences) (*domain.Subscriber, error) {
	f.commits++
	f.committed = &domain.Subscriber{
		ID:            uuid.New().String(),
		Email:         d.Email,
		Phone:         d.Phone,
		ChannelOptIns: domain.ChannelSet(verified),
		Status:        domain.SubscriberActive,
		Preferences:   prefs,
		EmailVerified: true,
		PhoneVerified: true,
	}
	return f.committed, nil
}

type fixture struct {
	mgr    *Manager
	store  *memStore
	sender *captureSender
	reg    *fakeRegistry
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	sender := newCaptureSender()
	reg := &fakeRegistry{}
	mgr := NewManager(store, reg, sender, DefaultPolicy())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }
	return &fixture{mgr: mgr, store: store, sender: sender, reg: reg, clock: &now}
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

// mangle flips the first digit of a code, producing a guaranteed mismatch.
func mangle(code string) string {
	b := []byte(code)
	b[0] = '0' + ('9'-b[0])%10
	return string(b)
}

// reachConsent walks a session through both OTP steps.
func (f *fixture) reachConsent(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	sess, err := f.mgr.RequestEmailOTP(ctx, "", "reader@example.com")
	if err != nil {
		t.Fatalf("request email otp: %v", err)
	}
	if _, err := f.mgr.VerifyEmailOTP(ctx, sess.ID, f.sender.last(domain.ChannelEmail)); err != nil {
		t.Fatalf("verify email otp: %v", err)
	}
	if _, err := f.mgr.RequestPhoneOTP(ctx, sess.ID, "+15551234567"); err != nil {
		t.Fatalf("request phone otp: %v", err)
	}
	if _, err := f.mgr.VerifyPhoneOTP(ctx, sess.ID, f.sender.last(domain.ChannelWhatsApp)); err != nil {
		t.Fatalf("verify phone otp: %v", err)
	}
	return sess.ID
}

func TestEnrollmentHappyPath(t *testing.T) {
	f := newFixture(t)
	id := f.reachConsent(t)

	sub, err := f.mgr.Commit(context.Background(), id, domain.Preferences{Frequency: domain.FrequencyWeekly}, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if sub.Email != "reader@example.com" || sub.Phone != "+15551234567" {
		t.Errorf("committed subscriber has wrong identifiers: %+v", sub)
	}

	sess, _ := f.mgr.Session(context.Background(), id)
	if sess.Step != domain.StepCommitted {
		t.Errorf("step = %s, want committed", sess.Step)
	}
	if sess.SubscriberID != sub.ID {
		t.Error("session should record the committed subscriber id")
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := f.reachConsent(t)
	ctx := context.Background()

	first, err := f.mgr.Commit(ctx, id, domain.Preferences{Frequency: domain.FrequencyDaily}, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	second, err := f.mgr.Commit(ctx, id, domain.Preferences{Frequency: domain.FrequencyDaily}, true)
	if err != nil {
		t.Fatalf("repeat commit: %v", err)
	}
	if first.ID != second.ID {
		t.Error("repeat commit must return the same subscriber")
	}
	if f.reg.commits != 1 {
		t.Errorf("registry commits = %d, want 1", f.reg.commits)
	}
}

func TestCommitRequiresConsent(t *testing.T) {
	f := newFixture(t)
	id := f.reachConsent(t)

	_, err := f.mgr.Commit(context.Background(), id, domain.Preferences{}, false)
	if err != ErrConsentRequired {
		t.Errorf("expected ErrConsentRequired, got %v", err)
	}
	sess, _ := f.mgr.Session(context.Background(), id)
	if sess.Step != domain.StepAwaitingConsent {
		t.Errorf("refused commit must not advance the session, step = %s", sess.Step)
	}
}

func TestOTPLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.mgr.RequestEmailOTP(ctx, "", "a@x.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	wrong := mangle(f.sender.last(domain.ChannelEmail))

	// Two wrong guesses burn attempts, the third locks the session.
	for i := 0; i < 2; i++ {
		if _, err := f.mgr.VerifyEmailOTP(ctx, sess.ID, wrong); err != ErrInvalidOTP {
			t.Fatalf("guess %d: expected ErrInvalidOTP, got %v", i+1, err)
		}
	}
	if _, err := f.mgr.VerifyEmailOTP(ctx, sess.ID, wrong); err != ErrOTPLocked {
		t.Fatalf("third guess: expected ErrOTPLocked, got %v", err)
	}

	// Even the correct code is rejected once locked.
	if _, err := f.mgr.VerifyEmailOTP(ctx, sess.ID, f.sender.last(domain.ChannelEmail)); err != ErrOTPLocked {
		t.Errorf("correct code after lockout: expected ErrOTPLocked, got %v", err)
	}
	got, _ := f.mgr.Session(ctx, sess.ID)
	if got.Step != domain.StepAbandoned {
		t.Errorf("step = %s, want abandoned", got.Step)
	}
}

func TestOTPExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.mgr.RequestEmailOTP(ctx, "", "a@x.com")
	code := f.sender.last(domain.ChannelEmail)

	f.advance(11 * time.Minute)
	if _, err := f.mgr.VerifyEmailOTP(ctx, sess.ID, code); err != ErrOTPExpired {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}

	// Expiry must not burn attempts.
	got, _ := f.mgr.Session(ctx, sess.ID)
	if got.EmailOTP.AttemptsRemaining != DefaultPolicy().MaxAttempts {
		t.Errorf("attempts = %d, want %d", got.EmailOTP.AttemptsRemaining, DefaultPolicy().MaxAttempts)
	}
}

func TestResendCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.mgr.RequestEmailOTP(ctx, "", "a@x.com")

	if _, err := f.mgr.RequestEmailOTP(ctx, sess.ID, ""); err != ErrResendTooSoon {
		t.Fatalf("immediate resend: expected ErrResendTooSoon, got %v", err)
	}

	f.advance(61 * time.Second)
	if _, err := f.mgr.RequestEmailOTP(ctx, sess.ID, ""); err != nil {
		t.Fatalf("resend after cooldown: %v", err)
	}
	if f.sender.sent != 2 {
		t.Errorf("sent = %d, want 2", f.sender.sent)
	}
}

func TestStepGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.mgr.RequestEmailOTP(ctx, "", "a@x.com")

	if _, err := f.mgr.VerifyPhoneOTP(ctx, sess.ID, "123456"); err != ErrInvalidStep {
		t.Errorf("phone verify before email step: expected ErrInvalidStep, got %v", err)
	}
	if _, err := f.mgr.Commit(ctx, sess.ID, domain.Preferences{}, true); err != ErrInvalidStep {
		t.Errorf("early commit: expected ErrInvalidStep, got %v", err)
	}
}

func TestRequestEmailOTPValidatesFormat(t *testing.T) {
	f := newFixture(t)
	if _, err := f.mgr.RequestEmailOTP(context.Background(), "", "not-an-email"); err != ErrInvalidEmail {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestMissingSession(t *testing.T) {
	f := newFixture(t)
	if _, err := f.mgr.VerifyEmailOTP(context.Background(), "no-such-id", "123456"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGenerateCodeProducesUniformDigits(t *testing.T) {
	var counts [10]int
	for i := 0; i < 2000; i++ {
		code, err := generateCode(6)
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code length = %d, want 6", len(code))
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit %q in code %q", c, code)
			}
			counts[c-'0']++
		}
	}
	// 12000 draws at 1200 expected per digit. A skew of more than 25%
	// on any digit points at biased sampling, not chance.
	for d, n := range counts {
		if n < 900 || n > 1500 {
			t.Errorf("digit %d drawn %d times, expected about 1200", d, n)
		}
	}
}
