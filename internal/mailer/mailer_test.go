package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/akeren/go-waitlist/assets"
	"github.com/akeren/go-waitlist/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender keeps delivered messages. Err simulates a failing transport.
type recordingSender struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

const testConfirmURL = "http://localhost:3000/confirm?token=abc123&email=user%40example.com"

func TestMailer_SendConfirmation(t *testing.T) {
	sender := &recordingSender{}
	m := New(assets.EmailFS, sender, Options{})

	err := m.SendConfirmation(context.Background(), "user@example.com", testConfirmURL)
	require.NoError(t, err)

	sent := sender.Sent()
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, DefaultFrom, msg.From)
	assert.Equal(t, "user@example.com", msg.To)
	assert.NotEmpty(t, msg.Subject)
	assert.Contains(t, msg.Text, testConfirmURL)
	assert.Contains(t, msg.HTML, "token=abc123")
	assert.Contains(t, msg.HTML, "<a")
}

func TestMailer_SendConfirmation_SenderFailure(t *testing.T) {
	sender := &recordingSender{}
	sender.Err = errors.New("connection refused")
	m := New(assets.EmailFS, sender, Options{From: "Test <test@example.com>"})

	err := m.SendConfirmation(context.Background(), "user@example.com", testConfirmURL)

	require.Error(t, err)
	assert.ErrorIs(t, err, sender.Err)
	assert.Empty(t, sender.Sent())
}

func TestMailer_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	sender := &recordingSender{}
	sender.Err = errors.New("connection refused")
	m := New(assets.EmailFS, sender, Options{
		Breaker: &circuitbreaker.Config{
			FailureThreshold: 2,
			RecoveryTimeout:  time.Hour,
			SuccessThreshold: 1,
		},
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := m.SendConfirmation(ctx, "user@example.com", testConfirmURL)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTransportUnavailable)
	}

	sender.Err = nil
	err := m.SendConfirmation(ctx, "user@example.com", testConfirmURL)
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.ErrorIs(t, m.Ping(ctx), ErrTransportUnavailable)
	assert.Empty(t, sender.Sent())
}

func TestMailer_SendRateCap(t *testing.T) {
	sender := &recordingSender{}
	m := New(assets.EmailFS, sender, Options{
		Timeout:      100 * time.Millisecond,
		MaxPerSecond: 0.5,
	})

	ctx := context.Background()
	require.NoError(t, m.SendConfirmation(ctx, "first@example.com", testConfirmURL))

	err := m.SendConfirmation(ctx, "second@example.com", testConfirmURL)
	assert.ErrorIs(t, err, ErrThrottled)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "first@example.com", sent[0].To)
}

func TestMailer_NoRateCapByDefault(t *testing.T) {
	sender := &recordingSender{}
	m := New(assets.EmailFS, sender, Options{})

	for i := 0; i < 20; i++ {
		require.NoError(t, m.SendConfirmation(context.Background(), "user@example.com", testConfirmURL))
	}
	assert.Len(t, sender.Sent(), 20)
}

func TestMailer_Ping_HealthySender(t *testing.T) {
	m := New(assets.EmailFS, &recordingSender{}, Options{})
	assert.NoError(t, m.Ping(context.Background()))
}

func TestRenderer_Render(t *testing.T) {
	files := fstest.MapFS{
		"hello.tmpl":  {Data: []byte(`{{ define "subject" }}Hi {{ .Name }}{{ end }}{{ define "text" }}Visit {{ .URL }}{{ end }}`)},
		"hello.html":  {Data: []byte(`<a href="{{ .URL }}">{{ .Name }}</a>`)},
		"nosubj.tmpl": {Data: []byte(`{{ define "text" }}body{{ end }}`)},
		"nosubj.html": {Data: []byte(`<p>body</p>`)},
		"nohtml.tmpl": {Data: []byte(`{{ define "subject" }}s{{ end }}{{ define "text" }}t{{ end }}`)},
	}
	r := NewRenderer(files)

	t.Run("renders every part", func(t *testing.T) {
		out, err := r.Render("hello", map[string]string{"Name": "<b>Ann</b>", "URL": "https://x.test/?a=1&b=2"})
		require.NoError(t, err)

		assert.Equal(t, "Hi <b>Ann</b>", out.Subject)
		assert.Equal(t, "Visit https://x.test/?a=1&b=2", out.Text)
		assert.Contains(t, out.HTML, "&lt;b&gt;Ann&lt;/b&gt;")
	})

	failures := map[string]string{
		"missing subject block": "nosubj",
		"missing html file":     "nohtml",
		"unknown template":      "other",
		"disallowed rune":       "../hello",
		"empty name":            "",
	}

	for name, tmpl := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := r.Render(tmpl, nil)
			assert.Error(t, err)
		})
	}
}
