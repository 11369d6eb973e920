package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const smtpConnTimeout = 10 * time.Second

type SMTPSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	// ImplicitTLS wraps the connection in TLS before the greeting (SMTPS).
	// Port 465 always uses it.
	ImplicitTLS bool
}

// SMTPSender submits mail to an SMTP relay. Without implicit TLS the session
// is upgraded with STARTTLS when the relay offers it.
type SMTPSender struct {
	settings  SMTPSettings
	port      int
	tlsConfig *tls.Config
}

func NewSMTPSender(s SMTPSettings) *SMTPSender {
	if s.Port == "" {
		s.Port = "587"
	}
	if s.Port == "465" {
		s.ImplicitTLS = true
	}

	port, err := strconv.Atoi(s.Port)
	if err != nil {
		port = 587
	}

	return &SMTPSender{
		settings:  s,
		port:      port,
		tlsConfig: &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12},
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := newMsg(msg)
	if err != nil {
		return err
	}

	client, err := s.client()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}

// Ping opens a session, authenticating when credentials are set, then quits.
func (s *SMTPSender) Ping(ctx context.Context) error {
	client, err := s.client()
	if err != nil {
		return err
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp: dial %s:%d: %w", s.settings.Host, s.port, err)
	}
	return client.Close()
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTimeout(smtpConnTimeout),
		gomail.WithTLSConfig(s.tlsConfig),
	}

	if s.settings.ImplicitTLS {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}

	if s.settings.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.settings.Username),
			gomail.WithPassword(s.settings.Password),
		)
	}

	client, err := gomail.NewClient(s.settings.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: client: %w", err)
	}
	return client, nil
}

// newMsg composes a multipart/alternative message with Date and Message-ID set.
func newMsg(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient address: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	}

	return m, nil
}
