package repository

import (
	"accountsvc/internal/models"
	"context"
	"fmt"
	"time"
)

// AccountRepo: хранилище аккаунтов одного вида.
// Уникальность email держит само хранилище (индекс/constraint), а не сервис.
type AccountRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Insert(ctx context.Context, acc *models.Account) error
	FindAndUpdateByID(ctx context.Context, id string, upd models.AccountUpdate) (*models.Account, error)
	FindAndUpdateByEmail(ctx context.Context, email string, upd models.AccountUpdate) (*models.Account, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
	ValidID(id string) bool
	EnsureSchema(ctx context.Context) error
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// storeErr переводит ошибку драйвера в ErrStoreUnavailable, сохраняя исходную.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

func nowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
