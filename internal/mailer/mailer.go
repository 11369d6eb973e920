package mailer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/akeren/go-waitlist/pkg/circuitbreaker"
	"golang.org/x/time/rate"
)

const (
	ConfirmationTemplate = "confirmation"
	DefaultFrom          = "Eluna.ID <no-reply@eluna.id>"
	DefaultTimeout       = 10 * time.Second
)

// Message is a fully rendered email ready for a transport.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message through a mail transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Pinger is implemented by senders that can check their transport.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrTransportUnavailable is returned while the circuit breaker holds the transport open.
var ErrTransportUnavailable = errors.New("mail transport unavailable")

// ErrThrottled is returned when the send rate cap leaves no slot before the timeout.
var ErrThrottled = errors.New("mail send rate exceeded")

type Options struct {
	From    string
	Timeout time.Duration
	Breaker *circuitbreaker.Config
	// MaxPerSecond caps outgoing mail for relays that throttle senders.
	// Zero means unlimited.
	MaxPerSecond float64
}

// Mailer sends confirmation emails. A failed transport trips the breaker so
// later registrations fail fast instead of waiting on the timeout each time.
type Mailer struct {
	renderer *Renderer
	sender   Sender
	from     string
	timeout  time.Duration
	breaker  circuitbreaker.CircuitBreaker
	throttle *rate.Limiter
}

func New(templates fs.FS, sender Sender, opts Options) *Mailer {
	if opts.From == "" {
		opts.From = DefaultFrom
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Mailer{
		renderer: NewRenderer(templates),
		sender:   sender,
		from:     opts.From,
		timeout:  opts.Timeout,
		breaker:  circuitbreaker.NewCircuitBreaker(opts.Breaker),
		throttle: newThrottle(opts.MaxPerSecond),
	}
}

func newThrottle(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), int(math.Max(1, math.Ceil(perSecond))))
}

// SendConfirmation renders the confirmation email for confirmURL and sends it to email.
func (m *Mailer) SendConfirmation(ctx context.Context, email, confirmURL string) error {
	rendered, err := m.renderer.Render(ConfirmationTemplate, struct {
		Email      string
		ConfirmURL string
	}{
		Email:      email,
		ConfirmURL: confirmURL,
	})
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	msg := Message{
		From:    m.from,
		To:      email,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// The wait counts against the send timeout; Wait fails at once when the
	// next slot lies past the deadline.
	if err := m.throttle.Wait(sendCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}

	err = m.breaker.Call(func() error {
		return m.sender.Send(sendCtx, msg)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return ErrTransportUnavailable
	}
	if err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	return nil
}

// Ping reports the transport health: open breaker first, then the sender's own check.
func (m *Mailer) Ping(ctx context.Context) error {
	if m.breaker.State() == circuitbreaker.Open {
		return ErrTransportUnavailable
	}

	if p, ok := m.sender.(Pinger); ok {
		return p.Ping(ctx)
	}

	return nil
}
