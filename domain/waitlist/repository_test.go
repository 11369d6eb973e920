package waitlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/internal/models"
	apperrors "github.com/akeren/go-waitlist/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// Every pooled connection would otherwise get its own empty in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.ModelRegistry...))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func mustToken(t *testing.T) Token {
	t.Helper()
	token, err := NewToken()
	require.NoError(t, err)
	return token
}

func storedToken(t *testing.T, entry *models.WaitlistEntry) string {
	t.Helper()
	require.NotNil(t, entry.Token, "entry has no token")
	return *entry.Token
}

func TestWaitlistRepository_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(newTestDB(t))

	first := mustToken(t)
	inserted, err := repo.InsertIfAbsent(ctx, "user@example.com", first)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, "user@example.com", mustToken(t))
	require.NoError(t, err)
	assert.False(t, inserted)

	entry, err := repo.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.String(), storedToken(t, entry))
	assert.True(t, entry.IsPending())
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestWaitlistRepository_FindByEmail_NotFound(t *testing.T) {
	repo := NewWaitlistRepository(newTestDB(t))

	_, err := repo.FindByEmail(context.Background(), "missing@example.com")

	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestWaitlistRepository_TokenLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(newTestDB(t))

	original := mustToken(t)
	_, err := repo.InsertIfAbsent(ctx, "user@example.com", original)
	require.NoError(t, err)

	rotated := mustToken(t)
	ok, err := repo.UpdateToken(ctx, "user@example.com", rotated)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.FindPendingByToken(ctx, original)
	assert.True(t, apperrors.IsNotFoundError(err), "rotated-away token must not resolve")

	entry, err := repo.FindPendingByToken(ctx, rotated)
	require.NoError(t, err)

	changed, err := repo.MarkConfirmed(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkConfirmed(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, changed, "confirming twice is a no-op")

	_, err = repo.FindPendingByToken(ctx, rotated)
	assert.True(t, apperrors.IsNotFoundError(err))

	confirmed, err := repo.FindByToken(ctx, rotated)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)

	ok, err = repo.UpdateToken(ctx, "user@example.com", mustToken(t))
	require.NoError(t, err)
	assert.False(t, ok, "confirmed entries keep their token")
}

func TestWaitlistRepository_ListAll_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewWaitlistRepository(db)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		token := mustToken(t).String()
		require.NoError(t, db.Create(&models.WaitlistEntry{
			Email:     email,
			Token:     &token,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "c@example.com", entries[0].Email)
	assert.Equal(t, "b@example.com", entries[1].Email)
	assert.Equal(t, "a@example.com", entries[2].Email)
}

func TestWaitlistService_ConcurrentRegistrationOfNewEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewWaitlistRepository(db)

	notifier := &recordingNotifier{}
	service := NewWaitlistService(log.NewDiscardLogger(), repo, notifier, ServiceOptions{PublicURL: "http://localhost:3000"})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- service.Register(context.Background(), "race@example.com")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.WaitlistEntry{}).Where("email = ?", "race@example.com").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	entry, err := repo.FindByEmail(context.Background(), "race@example.com")
	require.NoError(t, err)

	tokens := notifier.tokens()
	require.Len(t, tokens, 2)
	assert.Contains(t, tokens, storedToken(t, entry), "the stored token is one of the mailed ones")
}

func TestWaitlistService_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewWaitlistRepository(db)
	notifier := &recordingNotifier{}
	service := NewWaitlistService(log.NewDiscardLogger(), repo, notifier, ServiceOptions{PublicURL: "http://localhost:3000"})

	require.NoError(t, service.Register(ctx, "User@Example.com "))

	entry, err := repo.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, entry.IsPending())

	email, err := service.Confirm(ctx, notifier.last(), "")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	require.NoError(t, service.Register(ctx, "user@example.com"))
	assert.Len(t, notifier.tokens(), 1, "confirmed emails are not mailed again")

	entry, err = repo.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, entry.Confirmed)

	var count int64
	require.NoError(t, db.Model(&models.WaitlistEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	err = service.Register(ctx, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	require.NoError(t, db.Model(&models.WaitlistEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWaitlistService_RotationInvalidatesOldToken(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(newTestDB(t))
	notifier := &recordingNotifier{}
	service := NewWaitlistService(log.NewDiscardLogger(), repo, notifier, ServiceOptions{PublicURL: "http://localhost:3000"})

	require.NoError(t, service.Register(ctx, "user@example.com"))
	first := notifier.last()
	require.NoError(t, service.Register(ctx, "user@example.com"))
	second := notifier.last()
	require.NotEqual(t, first, second)

	_, err := service.Confirm(ctx, first, "")
	assert.True(t, apperrors.IsNotFoundError(err))

	email, err := service.Confirm(ctx, second, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	email, err = service.Confirm(ctx, second, "")
	require.NoError(t, err, "second click stays successful")
	assert.Equal(t, "user@example.com", email)
}

// recordingNotifier keeps the token of every confirmation link it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, _ string, confirmURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, confirmURL)
	return nil
}

func (n *recordingNotifier) tokens() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.urls))
	for _, u := range n.urls {
		out = append(out, tokenFromURL(u))
	}
	return out
}

func (n *recordingNotifier) last() string {
	tokens := n.tokens()
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}
