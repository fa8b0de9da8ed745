package services

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"accountsvc/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

// OTPStore: хранилище ожидающих кодов, по одному на (kind, email).
type OTPStore interface {
	Save(ctx context.Context, code *models.OneTimeCode) error
	Get(ctx context.Context, kind, email string) (*models.OneTimeCode, error)
	// DeleteIfCode атомарно удаляет запись, если хеш совпал, и сообщает, удалила ли.
	DeleteIfCode(ctx context.Context, kind, email, codeHash string) (bool, error)
	Delete(ctx context.Context, kind, email string) error
}

type OTPDeliverer interface {
	SendOTP(ctx context.Context, to, code string) error
}

type OTPService struct {
	store     OTPStore
	deliverer OTPDeliverer
	length    int
	ttl       time.Duration
	now       func() time.Time
	generate  func(n int) (string, error)
}

func NewOTPService(store OTPStore, deliverer OTPDeliverer, length int, ttl time.Duration) *OTPService {
	return &OTPService{
		store:     store,
		deliverer: deliverer,
		length:    length,
		ttl:       ttl,
		now:       time.Now,
		generate:  utils.GenerateOTP,
	}
}

// Issue выдаёт новый код, перезаписывая прежний, и отправляет его владельцу.
// Если доставка не удалась, выданный код откатывается.
func (s *OTPService) Issue(ctx context.Context, kind models.Kind, email string) (string, error) {
	code, err := s.generate(s.length)
	if err != nil {
		logger.Log.Error("Ошибка генерации кода (service)", zap.String("kind", kind.Name), zap.Error(err))
		return "", err
	}

	now := s.now()
	rec := &models.OneTimeCode{
		Kind:      kind.Name,
		Email:     email,
		CodeHash:  utils.HashOTP(code),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		logger.Log.Error("Ошибка сохранения кода (service)", zap.String("kind", kind.Name), zap.String("email", email), zap.Error(err))
		return "", err
	}

	if err := s.deliverer.SendOTP(ctx, email, code); err != nil {
		logger.Log.Error("Ошибка доставки кода, откатываем (service)",
			zap.String("kind", kind.Name),
			zap.String("email", email),
			zap.Error(err),
		)
		s.rollback(ctx, rec)
		return "", fmt.Errorf("%w: %w", models.ErrDeliveryFailed, err)
	}

	logger.Log.Info("Код сброса выдан (service)",
		zap.String("kind", kind.Name),
		zap.String("email", email),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return code, nil
}

// rollback удаляет только что выданный код, если его ещё не перезаписали.
func (s *OTPService) rollback(ctx context.Context, rec *models.OneTimeCode) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if _, err := s.store.DeleteIfCode(ctx, rec.Kind, rec.Email, rec.CodeHash); err != nil {
		logger.Log.Error("Не удалось откатить код (service)", zap.String("kind", rec.Kind), zap.String("email", rec.Email), zap.Error(err))
	}
}

// Validate проверяет код и погашает его. Успешно проходит ровно один раз.
func (s *OTPService) Validate(ctx context.Context, kind models.Kind, email, code string) error {
	rec, err := s.pending(ctx, kind, email, code)
	if err != nil {
		return err
	}

	ok, err := s.store.DeleteIfCode(ctx, kind.Name, email, rec.CodeHash)
	if err != nil {
		logger.Log.Error("Ошибка погашения кода (service)", zap.String("kind", kind.Name), zap.String("email", email), zap.Error(err))
		return err
	}
	if !ok {
		// код погасил параллельный запрос
		return models.ErrNoPendingOTP
	}

	logger.Log.Info("Код подтверждён и погашен (service)", zap.String("kind", kind.Name), zap.String("email", email))
	return nil
}

// Check проверяет код, не погашая его.
func (s *OTPService) Check(ctx context.Context, kind models.Kind, email, code string) error {
	_, err := s.pending(ctx, kind, email, code)
	return err
}

func (s *OTPService) pending(ctx context.Context, kind models.Kind, email, code string) (*models.OneTimeCode, error) {
	rec, err := s.store.Get(ctx, kind.Name, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoPendingOTP
	}
	if err != nil {
		return nil, err
	}

	if rec.Expired(s.now()) {
		logger.Log.Info("Код просрочен (service)", zap.String("kind", kind.Name), zap.String("email", email))
		if _, err := s.store.DeleteIfCode(ctx, kind.Name, email, rec.CodeHash); err != nil {
			logger.Log.Warn("Не удалось удалить просроченный код (service)", zap.String("email", email), zap.Error(err))
		}
		return nil, models.ErrExpired
	}

	if !utils.OTPHashEqual(rec.CodeHash, utils.HashOTP(code)) {
		logger.Log.Warn("Неверный код (service)", zap.String("kind", kind.Name), zap.String("email", email))
		return nil, models.ErrMismatch
	}
	return rec, nil
}

// Revoke снимает ожидающий код, если он есть.
func (s *OTPService) Revoke(ctx context.Context, kind models.Kind, email string) error {
	if err := s.store.Delete(ctx, kind.Name, email); err != nil {
		logger.Log.Warn("Не удалось снять код (service)", zap.String("kind", kind.Name), zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}
