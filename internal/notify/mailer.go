// Package notify adapts the storefront's transactional-email dispatcher for
// the payment core. Email delivery is never load-bearing: payment state
// transitions succeed whether or not a notification goes out.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBrevoURL is the Brevo transactional email endpoint
const DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

// Mailer sends one transactional email
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error
}

// BrevoMailer sends email through the Brevo HTTP API
type BrevoMailer struct {
	apiKey      string
	senderEmail string
	senderName  string
	baseURL     string
	client      *http.Client
}

// NewBrevoMailer creates a Brevo-backed mailer
func NewBrevoMailer(apiKey, senderEmail, senderName, baseURL string) *BrevoMailer {
	if baseURL == "" {
		baseURL = DefaultBrevoURL
	}
	return &BrevoMailer{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		baseURL:     baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// Send posts one transactional email to Brevo
func (m *BrevoMailer) Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %q", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": m.senderName, "email": m.senderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
