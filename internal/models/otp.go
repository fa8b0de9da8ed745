package models

import "time"

// OneTimeCode: ожидающий подтверждения код сброса пароля.
// На пару (kind, email) живёт не больше одной записи; сам код не хранится.
type OneTimeCode struct {
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// SessionClaims: то, что достаём из проверенного токена.
type SessionClaims struct {
	Email string
	Kind  string
}
