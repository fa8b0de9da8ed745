package utils

import (
	"accountsvc/internal/models"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes: bcrypt не принимает пароли длиннее 72 байт.
const MaxPasswordBytes = 72

// CheckPasswordLength отклоняет пароль, который bcrypt не сможет захешировать.
func CheckPasswordLength(password string) error {
	if len(password) > MaxPasswordBytes {
		return models.Invalid("password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

// PasswordHasher: bcrypt с настраиваемой стоимостью.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if err := CheckPasswordLength(password); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", models.Invalid("password must be at most %d bytes", MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(b), nil
}

// Compare сравнивает за постоянное время (внутри bcrypt).
func (h *PasswordHasher) Compare(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
