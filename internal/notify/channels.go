// Package notify implements the deadline-warning scheduler and the
// pluggable outbound channels it delivers through.
package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/navalmess/api/internal/config"
)

// Channel is a pure side-effect outbound sender. Send returns false when
// the channel is not configured or delivery failed.
type Channel interface {
	Name() string
	Send(ctx context.Context, to, subject, body string) bool
}

// EmailChannel delivers deadline warnings through the Resend HTTPS API.
// Unconfigured, every Send is a no-op returning false.
type EmailChannel struct {
	client *resend.Client
	from   string
	log    zerolog.Logger
}

// NewEmailChannel builds the email channel from configuration. A nil-client
// channel is returned when unconfigured so callers never need to special-case.
func NewEmailChannel(cfg config.ResendConfig, log zerolog.Logger) *EmailChannel {
	ch := &EmailChannel{from: cfg.From, log: log}
	if cfg.Configured() {
		ch.client = resend.NewClient(cfg.APIKey)
	}
	return ch
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, to, subject, body string) bool {
	if c.client == nil || to == "" {
		return false
	}
	_, err := c.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("to", to).Msg("email delivery failed")
		return false
	}
	return true
}

// SMSChannel delivers deadline warnings as an HTTPS POST to the Twilio
// messages endpoint. No vetted Go SDK exists for this provider, so the
// channel speaks the form-encoded REST API directly.
type SMSChannel struct {
	cfg      config.TwilioConfig
	client   *http.Client
	endpoint string
	log      zerolog.Logger
}

// NewSMSChannel builds the SMS channel. client may be nil to use a default.
func NewSMSChannel(cfg config.TwilioConfig, client *http.Client, log zerolog.Logger) *SMSChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &SMSChannel{
		cfg:      cfg,
		client:   client,
		endpoint: "https://api.twilio.com/2010-04-01/Accounts/" + cfg.SID + "/Messages.json",
		log:      log,
	}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, to, _ string, body string) bool {
	if !c.cfg.Configured() || to == "" {
		return false
	}
	form := url.Values{}
	form.Set("From", c.cfg.From)
	form.Set("To", to)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.SID, c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("to", to).Msg("sms delivery failed")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Str("to", to).Msg("sms provider rejected message")
		return false
	}
	return true
}
