package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/go-waitlist/assets"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/internal/mailer"
	"github.com/akeren/go-waitlist/pkg/circuitbreaker"
	"github.com/akeren/go-waitlist/pkg/utils"
)

const (
	MailDriverSMTP     = "smtp"
	MailDriverSendGrid = "sendgrid"
	MailDriverLog      = "log"
)

type MailConfig struct {
	Driver         string
	From           string
	Timeout        time.Duration
	MaxPerSecond   float64
	SMTP           mailer.SMTPSettings
	SendGridAPIKey string
}

func NewMailConfigFromEnv() *MailConfig {
	cfg := &MailConfig{
		Driver: strings.ToLower(utils.GetEnvTrimmed("MAIL_DRIVER")),
		From:   utils.GetEnvTrimmedOrDefault("MAIL_FROM", mailer.DefaultFrom),
		SMTP: mailer.SMTPSettings{
			Host:     utils.GetEnvTrimmed("SMTP_HOST"),
			Port:     utils.GetEnvTrimmedOrDefault("SMTP_PORT", "587"),
			Username: utils.GetEnvTrimmed("SMTP_USER"),
			Password: GetValueFromEnvironmentVariable("SMTP_PASS", ""),
		},
		SendGridAPIKey: utils.GetEnvTrimmed("SENDGRID_API_KEY"),
		Timeout:        mailer.DefaultTimeout,
	}

	if raw := utils.GetEnvTrimmed("MAIL_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.Timeout = parsed
		}
	}

	if implicit, err := strconv.ParseBool(utils.GetEnvTrimmed("SMTP_IMPLICIT_TLS")); err == nil {
		cfg.SMTP.ImplicitTLS = implicit
	}

	if parsed, err := strconv.ParseFloat(utils.GetEnvTrimmed("MAIL_MAX_PER_SECOND"), 64); err == nil && parsed > 0 {
		cfg.MaxPerSecond = parsed
	}

	return cfg
}

// resolveDriver returns the configured driver, inferring one from the
// available credentials when MAIL_DRIVER is unset.
func (c *MailConfig) resolveDriver() string {
	if c.Driver != "" {
		return c.Driver
	}
	if c.SMTP.Host != "" {
		return MailDriverSMTP
	}
	if c.SendGridAPIKey != "" {
		return MailDriverSendGrid
	}
	return MailDriverLog
}

// NewSender builds the transport for the resolved driver. A driver selected
// without its settings is a ConfigurationError.
func (c *MailConfig) NewSender(logger *log.Logger) (mailer.Sender, error) {
	driver := c.resolveDriver()

	switch driver {
	case MailDriverSMTP:
		if c.SMTP.Host == "" {
			return nil, &ConfigurationError{Component: "mail", Missing: []string{"SMTP_HOST"}}
		}
		if c.SMTP.Username != "" && c.SMTP.Password == "" {
			return nil, &ConfigurationError{Component: "mail", Missing: []string{"SMTP_PASS"}, Reason: "SMTP_USER is set"}
		}
		logger.Info("Mail driver configured", "driver", driver, "host", c.SMTP.Host, "port", c.SMTP.Port,
			"implicit_tls", c.SMTP.ImplicitTLS || c.SMTP.Port == "465")
		return mailer.NewSMTPSender(c.SMTP), nil

	case MailDriverSendGrid:
		if c.SendGridAPIKey == "" {
			return nil, &ConfigurationError{Component: "mail", Missing: []string{"SENDGRID_API_KEY"}}
		}
		logger.Info("Mail driver configured", "driver", driver)
		return mailer.NewSendGridSender(c.SendGridAPIKey), nil

	case MailDriverLog:
		if c.Driver == "" {
			logger.Warn("No mail transport configured; confirmation emails will only be logged",
				"hint", "set SMTP_HOST or SENDGRID_API_KEY")
		}
		return mailer.NewLogSender(logger), nil

	default:
		return nil, &ConfigurationError{
			Component: "mail",
			Reason:    fmt.Sprintf("unsupported MAIL_DRIVER %q (allowed: smtp, sendgrid, log)", driver),
		}
	}
}

// NewMailer wires the configured sender to the embedded email templates.
func NewMailer(logger *log.Logger, cfg *MailConfig) (*mailer.Mailer, error) {
	sender, err := cfg.NewSender(logger)
	if err != nil {
		return nil, err
	}

	breaker := circuitbreaker.DefaultConfig()
	breaker.OnStateChange = func(from, to circuitbreaker.CircuitState) {
		if to == circuitbreaker.Open {
			logger.Error("Mail transport circuit opened", "driver", cfg.resolveDriver(), "retry_after", breaker.RecoveryTimeout.String())
			return
		}
		logger.Info("Mail transport circuit changed state", "from", from.String(), "to", to.String())
	}

	return mailer.New(assets.EmailFS, sender, mailer.Options{
		From:         cfg.From,
		Timeout:      cfg.Timeout,
		Breaker:      breaker,
		MaxPerSecond: cfg.MaxPerSecond,
	}), nil
}
