package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/pkg/config"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

const whatsAppGraphURL = "https://graph.facebook.com/v18.0"

// WhatsAppSender delivers the text channel through the WhatsApp Cloud API
type WhatsAppSender struct {
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	baseURL       string
}

var _ providers.NotificationSender = (*WhatsAppSender)(nil)

// NewWhatsAppSender creates a new WhatsApp sender
func NewWhatsAppSender(cfg config.NotificationConfig) (*WhatsAppSender, error) {
	if cfg.WhatsAppAccessToken == "" || cfg.WhatsAppPhoneNumberID == "" {
		return nil, fmt.Errorf("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be set")
	}

	return &WhatsAppSender{
		accessToken:   cfg.WhatsAppAccessToken,
		phoneNumberID: cfg.WhatsAppPhoneNumberID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: whatsAppGraphURL,
	}, nil
}

// whatsAppTextMessage represents a text message
type whatsAppTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// whatsAppResponse represents the API response
type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Channel reports the channel this sender serves
func (w *WhatsAppSender) Channel() entities.NotificationChannel {
	return entities.ChannelSMS
}

// Send delivers body as a text message. WhatsApp has no subject line, so a
// non-empty subject is prepended in bold.
func (w *WhatsAppSender) Send(ctx context.Context, recipient, subject, body string) error {
	text := body
	if subject != "" {
		text = fmt.Sprintf("*%s*\n%s", subject, body)
	}
	_, err := w.SendText(ctx, recipient, text)
	return err
}

// SendText sends a text message and returns the message id
func (w *WhatsAppSender) SendText(ctx context.Context, to, body string) (string, error) {
	message := whatsAppTextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	message.Text.PreviewURL = true
	message.Text.Body = body

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	jsonData, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("failed to reach WhatsApp", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", apperrors.NewRateLimitedError("WhatsApp rate limit reached", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", apperrors.NewExternalError(
			fmt.Sprintf("WhatsApp API error (status %d)", resp.StatusCode),
			fmt.Errorf("%s", string(respBody)),
		)
	}

	var parsed whatsAppResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("no message ID in response")
	}
	return parsed.Messages[0].ID, nil
}
