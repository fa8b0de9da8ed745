package models

import (
	"regexp"
	"strings"
	"time"
)

// Kind описывает вид аккаунта. Пользователи и администраторы хранятся
// одинаково, различаются коллекцией и набором картинок.
type Kind struct {
	Name          string
	Collection    string
	HasCoverImage bool
}

var (
	UserKind  = Kind{Name: "user", Collection: "users", HasCoverImage: true}
	AdminKind = Kind{Name: "admin", Collection: "admins"}
)

func KindByName(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case UserKind.Name:
		return UserKind, true
	case AdminKind.Name:
		return AdminKind, true
	}
	return Kind{}, false
}

// Title: "User"/"Admin" для сообщений клиенту.
func (k Kind) Title() string {
	if k.Name == "" {
		return ""
	}
	return strings.ToUpper(k.Name[:1]) + k.Name[1:]
}

type Account struct {
	ID           string
	Kind         Kind
	Email        string
	Name         string
	PasswordHash string
	DisplayImage string
	CoverImage   string
	CreatedAt    time.Time
}

// AccountView: то, что уходит клиенту. Хеш пароля сюда не попадает никогда.
type AccountView struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	DisplayImage string    `json:"displayImage,omitempty"`
	CoverImage   string    `json:"coverImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Token        string    `json:"token,omitempty"`
}

func (a *Account) View() *AccountView {
	v := &AccountView{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		DisplayImage: a.DisplayImage,
		CreatedAt:    a.CreatedAt,
	}
	if a.Kind.HasCoverImage {
		v.CoverImage = a.CoverImage
	}
	return v
}

// AccountUpdate: частичный набор полей для find-and-update.
// Password к этому моменту уже должен быть хешем.
type AccountUpdate struct {
	Name         *string
	Password     *string
	DisplayImage *string
	CoverImage   *string
}

func (u AccountUpdate) IsEmpty() bool {
	return u.Name == nil && u.Password == nil && u.DisplayImage == nil && u.CoverImage == nil
}

var emailRegexp = regexp.MustCompile(`^\S+@\S+\.\S+$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if !emailRegexp.MatchString(email) {
		return Invalid("%s is not a valid email address!", email)
	}
	return nil
}

// NewAccount проверяет обязательные поля и возвращает аккаунт без ID и хеша.
func NewAccount(kind Kind, name, email, defaultImage string) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("name is required")
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	acc := &Account{
		Kind:         kind,
		Email:        email,
		Name:         name,
		DisplayImage: defaultImage,
	}
	if kind.HasCoverImage {
		acc.CoverImage = defaultImage
	}
	return acc, nil
}
