package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"
	"time"
)

// DefaultOTPTemplate renders the password-reset code email.
const DefaultOTPTemplate = `Hi {{.Email}},

This is your password reset code for {{.SiteName}}:

{{.Code}}

The code is valid for {{printf "%.0f" .ValidFor.Minutes}} minutes.

If you did not request a password reset, you can ignore this email.


Regards,

{{.SiteName}}
`

// DefaultConfirmationTemplate renders the post-reset notification email.
const DefaultConfirmationTemplate = `Hi {{.Email}},

The password for your {{.SiteName}} account was just changed.

If this was not you, request a new password reset immediately.


Regards,

{{.SiteName}}
`

type templateData struct {
	Email    string
	SiteName string
	Code     string
	ValidFor time.Duration
}

// SMTPMailer sends templated plain-text mail over a single SMTP endpoint.
type SMTPMailer struct {
	addr        string
	from        string
	auth        smtp.Auth
	siteName    string
	otpTmpl     *template.Template
	confirmTmpl *template.Template
}

type SMTPConfig struct {
	Addr     string // host:port
	Host     string // host only, for PLAIN auth
	From     string
	Username string
	Password string
	SiteName string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	otpTmpl, err := template.New("otp").Parse(DefaultOTPTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse otp template: %w", err)
	}
	confirmTmpl, err := template.New("confirm").Parse(DefaultConfirmationTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse confirmation template: %w", err)
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPMailer{
		addr:        cfg.Addr,
		from:        cfg.From,
		auth:        auth,
		siteName:    cfg.SiteName,
		otpTmpl:     otpTmpl,
		confirmTmpl: confirmTmpl,
	}, nil
}

func (m *SMTPMailer) SendOTP(_ context.Context, email, code string, validFor time.Duration) error {
	return m.send(email, "Your password reset code", m.otpTmpl, templateData{
		Email:    email,
		SiteName: m.siteName,
		Code:     code,
		ValidFor: validFor,
	})
}

func (m *SMTPMailer) SendResetConfirmation(_ context.Context, email string) error {
	return m.send(email, "Your password was changed", m.confirmTmpl, templateData{
		Email:    email,
		SiteName: m.siteName,
	})
}

func (m *SMTPMailer) send(to, subject string, tmpl *template.Template, data templateData) error {
	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n", m.from, to, subject)
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, body.Bytes()); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
