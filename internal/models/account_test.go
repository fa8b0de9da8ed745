package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAccount(t *testing.T) {
	const img = "https://via.placeholder.com/150"

	tests := []struct {
		kind        Kind
		name, email string
		wantErr     error
		wantAcc     *Account
	}{
		{kind: UserKind, wantErr: ErrValidation},
		{kind: UserKind, name: "  ", email: "a@x.com", wantErr: ErrValidation},
		{kind: UserKind, name: "A", email: "email", wantErr: ErrValidation},
		{kind: UserKind, name: "A", email: "email@sdf", wantErr: ErrValidation},
		{kind: UserKind, name: "A", email: "a b@x.com", wantErr: ErrValidation},
		{
			kind: UserKind, name: " A ", email: " A@X.com ",
			wantAcc: &Account{Kind: UserKind, Name: "A", Email: "a@x.com", DisplayImage: img, CoverImage: img},
		},
		{
			kind: AdminKind, name: "Root", email: "root@x.com",
			wantAcc: &Account{Kind: AdminKind, Name: "Root", Email: "root@x.com", DisplayImage: img},
		},
	}

	for _, tt := range tests {
		acc, err := NewAccount(tt.kind, tt.name, tt.email, img)
		if tt.wantErr != nil {
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, acc)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.wantAcc, acc)
	}
}

func TestAccount_ViewHidesHash(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	acc := &Account{
		ID: "1", Kind: AdminKind, Email: "a@x.com", Name: "A",
		PasswordHash: "$2a$12$hash", DisplayImage: "d", CoverImage: "c", CreatedAt: created,
	}

	v := acc.View()

	assert.Equal(t, &AccountView{ID: "1", Name: "A", Email: "a@x.com", DisplayImage: "d", CreatedAt: created}, v)

	acc.Kind = UserKind
	assert.Equal(t, "c", acc.View().CoverImage)
}

func TestKindByName(t *testing.T) {
	k, ok := KindByName("ADMIN")
	assert.True(t, ok)
	assert.Equal(t, AdminKind, k)
	assert.Equal(t, "Admin", k.Title())

	_, ok = KindByName("guest")
	assert.False(t, ok)
}

func TestOneTimeCode_Expired(t *testing.T) {
	now := time.Now()
	c := &OneTimeCode{ExpiresAt: now}
	assert.True(t, c.Expired(now))
	assert.False(t, c.Expired(now.Add(-time.Second)))
}

func TestValidationError(t *testing.T) {
	err := Invalid("%s is not a valid email address!", "x")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "x is not a valid email address!", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}
