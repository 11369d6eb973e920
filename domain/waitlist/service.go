package waitlist

//go:generate mockgen -source=service.go -destination=mock_service.go -package=waitlist

import (
	"context"
	"net/url"
	"strings"

	"github.com/akeren/go-waitlist/internal/log"
	apperrors "github.com/akeren/go-waitlist/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Notifier delivers the confirmation link for a registration.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, confirmURL string) error
}

// WaitlistService is the registrar: it owns the lifecycle of waitlist entries.
type WaitlistService interface {
	// Register creates or refreshes the pending entry for rawEmail and mails a
	// confirmation link. Confirmed emails succeed without any side effect.
	Register(ctx context.Context, rawEmail string) error

	// Confirm resolves rawToken and marks its entry confirmed, returning the
	// entry's email. rawEmail is optional but must match the entry when given.
	Confirm(ctx context.Context, rawToken, rawEmail string) (string, error)

	// List returns every entry, newest first.
	List(ctx context.Context) ([]WaitlistEntryResponse, error)
}

type ServiceOptions struct {
	// PublicURL is the externally visible base URL used in confirmation links.
	PublicURL string
	Metrics   *Metrics
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	notifier   Notifier
	publicURL  string
	metrics    *Metrics
}

func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, notifier Notifier, opts ServiceOptions) WaitlistService {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	return &waitlistService{
		logger:     logger,
		repository: repository,
		notifier:   notifier,
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		metrics:    opts.Metrics,
	}
}

func (s *waitlistService) Register(ctx context.Context, rawEmail string) (err error) {
	ctx, span := tracer.Start(ctx, "waitlist.Register")
	defer func() { endSpan(span, err) }()

	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		s.metrics.registrations.WithLabelValues(outcomeInvalid).Inc()
		logger.Warn("Rejected pre-registration with invalid email")
		return apperrors.NewInvalidRequestError("invalid email", err)
	}

	token, outcome, err := s.issueToken(ctx, email)
	if err != nil {
		s.metrics.registrations.WithLabelValues(outcomeFailed).Inc()
		logger.Error("Failed to register waitlist entry", "error", err)
		return err
	}

	span.SetAttributes(attribute.String("waitlist.outcome", outcome))
	s.metrics.registrations.WithLabelValues(outcome).Inc()

	if outcome == outcomeAlreadyConfirmed {
		logger.Info("Email already confirmed; no confirmation email sent")
		return nil
	}

	s.notify(ctx, logger, email, token)
	return nil
}

// issueToken creates the entry or rotates its token. It returns an empty
// token with outcomeAlreadyConfirmed when the entry is confirmed.
func (s *waitlistService) issueToken(ctx context.Context, email string) (Token, string, error) {
	token, err := NewToken()
	if err != nil {
		return "", "", apperrors.NewInternalServerError("unable to generate token", err)
	}

	entry, err := s.repository.FindByEmail(ctx, email)
	if apperrors.IsNotFoundError(err) {
		var inserted bool
		inserted, err = s.repository.InsertIfAbsent(ctx, email, token)
		if err != nil {
			return "", "", err
		}
		if inserted {
			return token, outcomeCreated, nil
		}

		// A concurrent registration won the insert; continue from its row.
		entry, err = s.repository.FindByEmail(ctx, email)
	}
	if err != nil {
		return "", "", err
	}

	if !entry.IsPending() {
		return "", outcomeAlreadyConfirmed, nil
	}

	rotated, err := s.repository.UpdateToken(ctx, email, token)
	if err != nil {
		return "", "", err
	}
	if !rotated {
		// Confirmed between the read and the update.
		return "", outcomeAlreadyConfirmed, nil
	}

	return token, outcomeRotated, nil
}

// notify is best effort. The entry is already stored, so a failed send is
// logged and counted but never reported to the caller.
func (s *waitlistService) notify(ctx context.Context, logger *log.Logger, email string, token Token) {
	if err := s.notifier.SendConfirmation(ctx, email, s.confirmURL(email, token)); err != nil {
		s.metrics.notificationFailures.Inc()
		logger.Error("Failed to send confirmation email", "token", token, "error", err)
		return
	}

	logger.Info("Confirmation email sent", "token", token)
}

func (s *waitlistService) confirmURL(email string, token Token) string {
	return s.publicURL + "/confirm?token=" + token.String() + "&email=" + url.QueryEscape(email)
}

func (s *waitlistService) Confirm(ctx context.Context, rawToken, rawEmail string) (email string, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.Confirm")
	defer func() { endSpan(span, err) }()

	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	token, ok := ParseToken(strings.TrimSpace(rawToken))
	if !ok {
		s.metrics.confirmations.WithLabelValues(outcomeNotFound).Inc()
		logger.Warn("Rejected malformed confirmation token")
		return "", invalidTokenError()
	}

	var expected string
	if strings.TrimSpace(rawEmail) != "" {
		if expected, err = NormalizeEmail(rawEmail); err != nil {
			s.metrics.confirmations.WithLabelValues(outcomeNotFound).Inc()
			return "", invalidTokenError()
		}
	}

	entry, err := s.repository.FindPendingByToken(ctx, token)
	if apperrors.IsNotFoundError(err) {
		// Either unknown, or a second click on an already used link.
		entry, err = s.repository.FindByToken(ctx, token)
	}
	if apperrors.IsNotFoundError(err) {
		s.metrics.confirmations.WithLabelValues(outcomeNotFound).Inc()
		logger.Warn("Unknown confirmation token", "token", token)
		return "", invalidTokenError()
	}
	if err != nil {
		s.metrics.confirmations.WithLabelValues(outcomeFailed).Inc()
		logger.Error("Failed to look up confirmation token", "error", err)
		return "", err
	}

	if expected != "" && expected != entry.Email {
		s.metrics.confirmations.WithLabelValues(outcomeNotFound).Inc()
		logger.Warn("Confirmation email does not match token", "token", token)
		return "", invalidTokenError()
	}

	if !entry.IsPending() {
		s.metrics.confirmations.WithLabelValues(outcomeAlreadyConfirmed).Inc()
		logger.Info("Entry already confirmed", "id", entry.ID)
		return entry.Email, nil
	}

	changed, err := s.repository.MarkConfirmed(ctx, entry.ID)
	if err != nil {
		s.metrics.confirmations.WithLabelValues(outcomeFailed).Inc()
		logger.Error("Failed to confirm waitlist entry", "id", entry.ID, "error", err)
		return "", err
	}

	outcome := outcomeConfirmed
	if !changed {
		outcome = outcomeAlreadyConfirmed
	}
	s.metrics.confirmations.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("waitlist.outcome", outcome))

	logger.Info("Waitlist entry confirmed", "id", entry.ID)
	return entry.Email, nil
}

func (s *waitlistService) List(ctx context.Context) (_ []WaitlistEntryResponse, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.List")
	defer func() { endSpan(span, err) }()

	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	entries, err := s.repository.ListAll(ctx)
	if err != nil {
		logger.Error("Failed to list waitlist entries", "error", err)
		return nil, err
	}

	responses := make([]WaitlistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ToWaitlistEntryResponse(entry))
	}

	return responses, nil
}

func invalidTokenError() error {
	return apperrors.NewNotFoundError("invalid or unknown token", ErrInvalidToken)
}
