package email

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/dukerupert/dutyroster/internal/model"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

var ErrNotConfigured = errors.New("email client not configured: missing api key")

type Client struct {
	apiKey string
	from   *sgmail.Email
	host   string
}

type Option func(*Client)

// WithHost points the client at another SendGrid-compatible API host.
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

func NewClient(apiKey, fromName, fromEmail string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		from:   sgmail.NewEmail(fromName, fromEmail),
		host:   defaultHost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// SendCode emails a one-time code for email verification or password reset.
func (c *Client) SendCode(toEmail, code, purpose string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var subject, action string
	switch purpose {
	case model.CodePurposeReset:
		subject = "Reset your Duty Roster password"
		action = "reset your password"
	default:
		subject = "Verify your Duty Roster email"
		action = "verify your email address"
	}

	text := fmt.Sprintf("Use this code to %s:\n\n%s\n\nThe code expires in 15 minutes.", action, code)
	html := fmt.Sprintf(
		`<p>Use this code to %s:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>The code expires in 15 minutes.</p>`,
		action, code,
	)

	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", toEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", text),
		sgmail.NewContent("text/html", html),
	)

	req := sendgrid.GetRequest(c.apiKey, endpoint, c.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid API error: status %d", resp.StatusCode)
	}
	return nil
}
