package waitlist

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=waitlist

import (
	"context"
	"errors"

	"github.com/akeren/go-waitlist/internal/models"
	apperrors "github.com/akeren/go-waitlist/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WaitlistRepository is the persistence contract of the registrar. Lookups
// that match nothing return an apperrors NotFound error.
type WaitlistRepository interface {
	// FindByEmail returns the entry for a normalized email.
	FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error)
	// InsertIfAbsent creates a pending entry and reports whether it was inserted.
	// A concurrent insert of the same email is discarded, never returned as an error.
	InsertIfAbsent(ctx context.Context, email string, token Token) (bool, error)
	// UpdateToken replaces the token of a pending entry. It reports false when
	// the entry is missing or already confirmed.
	UpdateToken(ctx context.Context, email string, token Token) (bool, error)
	// FindPendingByToken returns the unconfirmed entry holding token.
	FindPendingByToken(ctx context.Context, token Token) (*models.WaitlistEntry, error)
	// FindByToken returns the entry holding token regardless of its status.
	FindByToken(ctx context.Context, token Token) (*models.WaitlistEntry, error)
	// MarkConfirmed flips a pending entry to confirmed and reports whether it changed.
	MarkConfirmed(ctx context.Context, id uint) (bool, error)
	// ListAll returns every entry, newest first.
	ListAll(ctx context.Context) ([]*models.WaitlistEntry, error)
}

type waitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (wr *waitlistRepository) FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry

	if err := wr.db.WithContext(ctx).Where("email = ?", email).Take(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("waitlist entry not found", err)
		}
		return nil, apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
	}

	return &entry, nil
}

func (wr *waitlistRepository) InsertIfAbsent(ctx context.Context, email string, token Token) (bool, error) {
	value := token.String()
	entry := &models.WaitlistEntry{
		Email: email,
		Token: &value,
	}

	result := wr.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(entry)

	if result.Error != nil {
		// Token collisions are the only uniqueness error left after ON CONFLICT.
		if isDuplicateKey(result.Error) {
			return false, apperrors.NewConflictError("waitlist token collision", result.Error)
		}
		return false, apperrors.NewDatabaseError("unable to create waitlist entry", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (wr *waitlistRepository) UpdateToken(ctx context.Context, email string, token Token) (bool, error) {
	result := wr.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("email = ? AND confirmed = ?", email, false).
		Update("token", token.String())

	if result.Error != nil {
		return false, apperrors.NewDatabaseError("unable to rotate waitlist token", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (wr *waitlistRepository) FindPendingByToken(ctx context.Context, token Token) (*models.WaitlistEntry, error) {
	return takeEntry(wr.db.WithContext(ctx).Where("token = ? AND confirmed = ?", token.String(), false))
}

func (wr *waitlistRepository) FindByToken(ctx context.Context, token Token) (*models.WaitlistEntry, error) {
	return takeEntry(wr.db.WithContext(ctx).Where("token = ?", token.String()))
}

func takeEntry(query *gorm.DB) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry

	if err := query.Take(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("waitlist entry not found", err)
		}
		return nil, apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
	}

	return &entry, nil
}

func (wr *waitlistRepository) MarkConfirmed(ctx context.Context, id uint) (bool, error) {
	result := wr.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("id = ? AND confirmed = ?", id, false).
		Update("confirmed", true)

	if result.Error != nil {
		return false, apperrors.NewDatabaseError("unable to confirm waitlist entry", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (wr *waitlistRepository) ListAll(ctx context.Context) ([]*models.WaitlistEntry, error) {
	var entries []*models.WaitlistEntry

	if err := wr.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}

	return entries, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}
