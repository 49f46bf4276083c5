package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// SMSSender delivers messages through the configured SMS gateway's HTTP API.
type SMSSender struct {
	apiKey   string
	senderID string
	baseURL  string
	client   *http.Client
}

// NewSMSSender creates the SMS channel adapter.
func NewSMSSender(apiKey, senderID, baseURL string) *SMSSender {
	return &SMSSender{
		apiKey:   apiKey,
		senderID: senderID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Send delivers a single SMS. Recipient is an E.164 number.
func (s *SMSSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if s.apiKey == "" {
		return nil, Permanent(fmt.Errorf("sms gateway api key not configured"))
	}

	payload, err := json.Marshal(smsRequest{To: msg.Recipient, From: s.senderID, Body: msg.Body})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("sms request: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("sms gateway error %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, Transient(err)
		}
		return nil, Permanent(err)
	}

	var parsed smsResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.MessageID == "" {
		return nil, Transient(fmt.Errorf("sms gateway: unexpected response: %s", string(body)))
	}

	logger.Debug("sms send accepted", "phone", msg.Recipient, "message_id", parsed.MessageID)
	return &Result{ProviderMessageID: parsed.MessageID}, nil
}
