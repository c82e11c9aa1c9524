// Package mailer delivers one-time passcodes through the external mail relay.
// The relay owns templating and provider credentials; this client only posts
// the recipient and code.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	relayURLEnv = "FIELDOPS_MAIL_RELAY_URL"
	apiKeyEnv   = "FIELDOPS_MAIL_API_KEY"

	// OTPValidity is how long a delivered code stays usable. Communicated to
	// the recipient by the relay template; enforced by the verification side.
	OTPValidity = 5 * time.Minute
)

var (
	ErrNotConfigured = errors.New("mailer: relay is not configured")
	ErrRelayRejected = errors.New("mailer: relay rejected the request")
)

// Client posts OTP delivery requests to the relay.
type Client struct {
	relayURL string
	apiKey   string
	http     *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewFromEnv builds a client from FIELDOPS_MAIL_RELAY_URL and
// FIELDOPS_MAIL_API_KEY. Returns ErrNotConfigured when the URL is unset so
// callers can degrade to a disabled mail path instead of failing startup.
func NewFromEnv(opts ...Option) (*Client, error) {
	relayURL := strings.TrimSpace(os.Getenv(relayURLEnv))
	if relayURL == "" {
		return nil, ErrNotConfigured
	}
	return New(relayURL, strings.TrimSpace(os.Getenv(apiKeyEnv)), opts...), nil
}

// New constructs a client against the given relay endpoint.
func New(relayURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		relayURL: strings.TrimRight(relayURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// SendOTP posts the code to the relay's send-otp endpoint.
func (c *Client) SendOTP(ctx context.Context, email, otp string) error {
	email = strings.TrimSpace(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return fmt.Errorf("mailer: email and otp are required")
	}
	body, err := json.Marshal(otpRequest{Email: email, OTP: otp})
	if err != nil {
		return fmt.Errorf("mailer: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL+"/api/send-otp", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: post otp: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRelayRejected, resp.StatusCode)
	}
	return nil
}
