package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luminapress/comms-engine/internal/domain"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"transient wrap", Transient(base), true},
		{"permanent wrap", Permanent(base), false},
		{"unclassified defaults to transient", base, true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v", got, tt.wantTransient)
			}
		})
	}
}

func whatsAppTestSender(url string) *WhatsAppSender {
	s := NewWhatsAppSender("token", "12345")
	s.baseURL = url
	return s
}

func TestWhatsAppSendOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.abc"}]}`))
	}))
	defer srv.Close()

	res, err := whatsAppTestSender(srv.URL).Send(context.Background(), &Message{
		Recipient: "+15551234567", Body: "hello", Channel: domain.ChannelWhatsApp,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.ProviderMessageID != "wamid.abc" {
		t.Errorf("message id = %q", res.ProviderMessageID)
	}
}

func TestWhatsAppClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{"invalid recipient", http.StatusBadRequest, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope","code":1}}`))
			}))
			defer srv.Close()

			_, err := whatsAppTestSender(srv.URL).Send(context.Background(), &Message{
				Recipient: "+15551234567", Body: "hello",
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err=%v)", got, tt.wantPermanent, err)
			}
		})
	}
}

func TestSMSSendOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message_id":"sms-1"}`))
	}))
	defer srv.Close()

	s := NewSMSSender("key", "LUMINA", srv.URL)
	res, err := s.Send(context.Background(), &Message{Recipient: "+15551234567", Body: "code 123456"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.ProviderMessageID != "sms-1" {
		t.Errorf("message id = %q", res.ProviderMessageID)
	}
}

func TestSMSMissingKeyIsPermanent(t *testing.T) {
	s := NewSMSSender("", "LUMINA", "http://unused")
	_, err := s.Send(context.Background(), &Message{Recipient: "+15551234567", Body: "x"})
	if !IsPermanent(err) {
		t.Errorf("expected permanent config error, got %v", err)
	}
}
