// Package provider defines the outbound message port consumed by the
// dispatcher and the verification manager, plus one adapter per channel
// (SES email, WhatsApp Business Cloud API, SMS gateway).
//
// Adapters are single-shot: they classify failures as transient or permanent
// and leave retry policy to the caller.
package provider

import (
	"context"

	"github.com/luminapress/comms-engine/internal/domain"
)

// Message is a fully-rendered message ready for a channel provider. By the
// time a message reaches this struct, all template substitution is complete.
type Message struct {
	CampaignID   string
	SubscriberID string
	Recipient    string // email address or E.164 phone, per channel
	Subject      string // email only
	Body         string
	Channel      domain.Channel
}

// Result is returned by a sender after the provider accepted the message.
type Result struct {
	ProviderMessageID string
}

// Sender is the provider adapter port. Implementations must honor ctx
// deadlines; a timeout surfaces as a transient error.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// Registry maps each channel to its configured sender.
type Registry map[domain.Channel]Sender

// For returns the sender for a channel, or nil if none is configured.
func (r Registry) For(c domain.Channel) Sender { return r[c] }
