package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// WhatsAppSender delivers messages through the WhatsApp Business Cloud API.
type WhatsAppSender struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	client        *http.Client
}

// NewWhatsAppSender creates the WhatsApp channel adapter.
func NewWhatsAppSender(accessToken, phoneNumberID string) *WhatsAppSender {
	return &WhatsAppSender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		baseURL:       "https://graph.facebook.com/v19.0",
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the Graph API endpoint. Used for regional
// endpoints and tests.
func (s *WhatsAppSender) SetBaseURL(u string) {
	if u != "" {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

type whatsAppRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	Body string `json:"body"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers a single text message. Recipient is an E.164 number.
func (s *WhatsAppSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if s.accessToken == "" {
		return nil, Permanent(fmt.Errorf("whatsapp access token not configured"))
	}

	payload, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		To:               msg.Recipient,
		Type:             "text",
		Text:             whatsAppTextBody{Body: msg.Body},
	})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		// Network and timeout failures are worth retrying.
		return nil, Transient(fmt.Errorf("whatsapp request: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("whatsapp error %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, Transient(err)
		}
		return nil, Permanent(err)
	}

	var parsed whatsAppResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Messages) == 0 {
		return nil, Transient(fmt.Errorf("whatsapp: unexpected response: %s", string(body)))
	}

	logger.Debug("whatsapp send accepted", "phone", msg.Recipient, "message_id", parsed.Messages[0].ID)
	return &Result{ProviderMessageID: parsed.Messages[0].ID}, nil
}
