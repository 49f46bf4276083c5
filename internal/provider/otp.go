package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/backoff"
)

// CodeCourier delivers one-time verification codes over the configured
// channels. It satisfies the verification manager's sender port without
// going through campaign dispatch; OTP delivery has no attempt record.
type CodeCourier struct {
	senders Registry
	ttl     time.Duration
	retry   backoff.Policy
}

// NewCodeCourier wraps a sender registry for OTP delivery. ttl is quoted
// in the message so recipients know how long the code lives.
func NewCodeCourier(senders Registry, ttl time.Duration, retry backoff.Policy) *CodeCourier {
	if retry.MaxAttempts <= 0 {
		retry = backoff.Default()
	}
	return &CodeCourier{senders: senders, ttl: ttl, retry: retry}
}

// SendCode sends a verification code to the recipient on the given channel.
// Transient provider errors back off and retry up to the policy's attempt
// cap, same as campaign dispatch; permanent errors stop immediately.
func (c *CodeCourier) SendCode(ctx context.Context, channel domain.Channel, recipient, code string) error {
	sender := c.senders.For(channel)
	if sender == nil {
		return Permanent(fmt.Errorf("no sender configured for channel %s", channel))
	}

	minutes := int(c.ttl.Minutes())
	msg := &Message{
		Recipient: recipient,
		Channel:   channel,
		Body:      fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
	}
	if channel == domain.ChannelEmail {
		msg.Subject = "Your verification code"
	}

	var lastErr error
	for n := 1; n <= c.retry.MaxAttempts; n++ {
		_, err := sender.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if IsPermanent(err) {
			break
		}
		if n < c.retry.MaxAttempts {
			if err := c.retry.Sleep(ctx, n); err != nil {
				break
			}
		}
	}
	return fmt.Errorf("send %s code: %w", channel, lastErr)
}
