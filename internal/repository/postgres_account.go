package repository

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

const accountColumns = `id, email, name, password, display_image, cover_image, created_at`

type PostgresAccountRepository struct {
	kind    models.Kind
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresAccountRepository(db *pgxpool.Pool, kind models.Kind, timeout time.Duration) *PostgresAccountRepository {
	return &PostgresAccountRepository{kind: kind, db: db, timeout: timeout}
}

func (r *PostgresAccountRepository) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// EnsureSchema: таблицы создаются goose-миграциями в db.RunMigrations.
func (r *PostgresAccountRepository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, r.kind.Collection).Scan(&exists)
	if err != nil {
		return storeErr("check table "+r.kind.Collection, err)
	}
	if !exists {
		return fmt.Errorf("table %s is missing: %w", r.kind.Collection, models.ErrStoreUnavailable)
	}
	return nil
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	logger.Log.Debug("Поиск аккаунта по email (repo)", zap.String("kind", r.kind.Name), zap.String("email", email))
	query := `SELECT ` + accountColumns + ` FROM ` + r.kind.Collection + ` WHERE email = $1`
	return r.queryOne(ctx, "find "+r.kind.Name, query, email)
}

func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, models.ErrInvalidIdentifier)
	}
	query := `SELECT ` + accountColumns + ` FROM ` + r.kind.Collection + ` WHERE id = $1`
	return r.queryOne(ctx, "find "+r.kind.Name, query, uid)
}

func (r *PostgresAccountRepository) Insert(ctx context.Context, acc *models.Account) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = nowMillis()
	}
	id := uuid.New()
	cover := ""
	if r.kind.HasCoverImage {
		cover = acc.CoverImage
	}

	query := `
	INSERT INTO ` + r.kind.Collection + ` (id, email, name, password, display_image, cover_image, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		id,
		acc.Email,
		acc.Name,
		acc.PasswordHash,
		acc.DisplayImage,
		cover,
		acc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", r.kind.Name, acc.Email, models.ErrAlreadyExists)
	}
	if err != nil {
		return storeErr("insert "+r.kind.Name, err)
	}

	acc.ID = id.String()
	logger.Log.Info("Аккаунт создан (repo)", zap.String("kind", r.kind.Name), zap.String("id", acc.ID))
	return nil
}

func (r *PostgresAccountRepository) FindAndUpdateByID(ctx context.Context, id string, upd models.AccountUpdate) (*models.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, models.ErrInvalidIdentifier)
	}
	if upd.IsEmpty() {
		return r.FindByID(ctx, id)
	}
	return r.update(ctx, "id", uid, upd)
}

func (r *PostgresAccountRepository) FindAndUpdateByEmail(ctx context.Context, email string, upd models.AccountUpdate) (*models.Account, error) {
	if upd.IsEmpty() {
		return r.FindByEmail(ctx, email)
	}
	return r.update(ctx, "email", email, upd)
}

func (r *PostgresAccountRepository) update(ctx context.Context, key string, val interface{}, upd models.AccountUpdate) (*models.Account, error) {
	set, args := buildAccountSet(upd, r.kind.HasCoverImage)
	if len(set) == 0 {
		query := `SELECT ` + accountColumns + ` FROM ` + r.kind.Collection + ` WHERE ` + key + ` = $1`
		return r.queryOne(ctx, "find "+r.kind.Name, query, val)
	}
	args = append(args, val)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d RETURNING %s`,
		r.kind.Collection, strings.Join(set, ", "), key, len(args), accountColumns)
	return r.queryOne(ctx, "update "+r.kind.Name, query, args...)
}

// buildAccountSet собирает SET-часть UPDATE из непустых полей.
func buildAccountSet(upd models.AccountUpdate, withCover bool) ([]string, []interface{}) {
	var set []string
	var args []interface{}
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("name", upd.Name)
	add("password", upd.Password)
	add("display_image", upd.DisplayImage)
	if withCover {
		add("cover_image", upd.CoverImage)
	}
	return set, args
}

func (r *PostgresAccountRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", id, models.ErrInvalidIdentifier)
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM `+r.kind.Collection+` WHERE id = $1`, uid)
	if err != nil {
		return 0, storeErr("delete "+r.kind.Name, err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresAccountRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM `+r.kind.Collection+` ORDER BY created_at`)
	if err != nil {
		return nil, storeErr("list "+r.kind.Name, err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := r.scan(rows)
		if err != nil {
			return nil, storeErr("scan "+r.kind.Name, err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list "+r.kind.Name, err)
	}
	return accounts, nil
}

func (r *PostgresAccountRepository) queryOne(ctx context.Context, op, query string, args ...interface{}) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	acc, err := r.scan(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(op, err)
	}
	return acc, nil
}

func (r *PostgresAccountRepository) scan(row pgx.Row) (*models.Account, error) {
	var (
		acc models.Account
		id  uuid.UUID
	)
	err := row.Scan(
		&id,
		&acc.Email,
		&acc.Name,
		&acc.PasswordHash,
		&acc.DisplayImage,
		&acc.CoverImage,
		&acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	acc.ID = id.String()
	acc.Kind = r.kind
	return &acc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
