package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/backoff"
)

// scriptedSender fails with the scripted errors in order, then succeeds.
type scriptedSender struct {
	errs  []error
	calls int
	last  *Message
}

func (s *scriptedSender) Send(_ context.Context, msg *Message) (*Result, error) {
	s.calls++
	s.last = msg
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &Result{ProviderMessageID: "msg-1"}, nil
}

func courierFor(sender Sender) (*CodeCourier, Registry) {
	reg := Registry{domain.ChannelEmail: sender}
	retry := backoff.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return NewCodeCourier(reg, 10*time.Minute, retry), reg
}

func TestCodeCourierRetriesTransientErrors(t *testing.T) {
	sender := &scriptedSender{errs: []error{Transient(errors.New("rate limited"))}}
	courier, _ := courierFor(sender)

	if err := courier.SendCode(context.Background(), domain.ChannelEmail, "a@x.com", "123456"); err != nil {
		t.Fatalf("SendCode after transient failure = %v, want nil", err)
	}
	if sender.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (one retry)", sender.calls)
	}
	if !strings.Contains(sender.last.Body, "123456") {
		t.Errorf("message body %q does not carry the code", sender.last.Body)
	}
}

func TestCodeCourierStopsOnPermanentError(t *testing.T) {
	sender := &scriptedSender{errs: []error{
		Permanent(errors.New("invalid recipient")),
		Permanent(errors.New("invalid recipient")),
	}}
	courier, _ := courierFor(sender)

	err := courier.SendCode(context.Background(), domain.ChannelEmail, "a@x.com", "123456")
	if err == nil {
		t.Fatal("SendCode with permanent error = nil, want error")
	}
	if sender.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (no retry on permanent)", sender.calls)
	}
}

func TestCodeCourierExhaustsRetries(t *testing.T) {
	boom := Transient(errors.New("timeout"))
	sender := &scriptedSender{errs: []error{boom, boom, boom}}
	courier, _ := courierFor(sender)

	err := courier.SendCode(context.Background(), domain.ChannelEmail, "a@x.com", "123456")
	if err == nil {
		t.Fatal("SendCode with persistent transient errors = nil, want error")
	}
	if sender.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (retry cap)", sender.calls)
	}
}

func TestCodeCourierMissingChannelIsPermanent(t *testing.T) {
	courier, _ := courierFor(&scriptedSender{})

	err := courier.SendCode(context.Background(), domain.ChannelSMS, "+15550001111", "123456")
	if !IsPermanent(err) {
		t.Errorf("SendCode without a configured sender = %v, want permanent error", err)
	}
}
