package services

import (
	"accountsvc/internal/models"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"
)

// Мок-репозиторий аккаунтов (в памяти, с уникальностью email как у индекса)
type memAccountRepo struct {
	mu      sync.Mutex
	kind    models.Kind
	byID    map[string]*models.Account
	seq     int
	calls   int
	failErr error
}

func newMemAccountRepo(kind models.Kind) *memAccountRepo {
	return &memAccountRepo{kind: kind, byID: make(map[string]*models.Account)}
}

var hexID = regexp.MustCompile(`^[0-9a-f]{24}$`)

func (m *memAccountRepo) ValidID(id string) bool { return hexID.MatchString(id) }

func (m *memAccountRepo) EnsureSchema(context.Context) error { return nil }

func (m *memAccountRepo) touch() error {
	m.calls++
	return m.failErr
}

func (m *memAccountRepo) byEmail(email string) *models.Account {
	for _, a := range m.byID {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (m *memAccountRepo) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return nil, err
	}
	a := m.byEmail(email)
	if a == nil {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return nil, err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) Insert(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return err
	}
	if m.byEmail(acc.Email) != nil {
		return fmt.Errorf("duplicate %s: %w", acc.Email, models.ErrAlreadyExists)
	}
	m.seq++
	acc.ID = fmt.Sprintf("%024x", m.seq)
	acc.CreatedAt = time.Now().UTC()
	cp := *acc
	m.byID[acc.ID] = &cp
	return nil
}

func (m *memAccountRepo) apply(a *models.Account, upd models.AccountUpdate) *models.Account {
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Password != nil {
		a.PasswordHash = *upd.Password
	}
	if upd.DisplayImage != nil {
		a.DisplayImage = *upd.DisplayImage
	}
	if upd.CoverImage != nil {
		a.CoverImage = *upd.CoverImage
	}
	cp := *a
	return &cp
}

func (m *memAccountRepo) FindAndUpdateByID(_ context.Context, id string, upd models.AccountUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return nil, err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return m.apply(a, upd), nil
}

func (m *memAccountRepo) FindAndUpdateByEmail(_ context.Context, email string, upd models.AccountUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return nil, err
	}
	a := m.byEmail(email)
	if a == nil {
		return nil, models.ErrNotFound
	}
	return m.apply(a, upd), nil
}

func (m *memAccountRepo) DeleteByID(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return 0, err
	}
	if _, ok := m.byID[id]; !ok {
		return 0, nil
	}
	delete(m.byID, id)
	return 1, nil
}

func (m *memAccountRepo) ListAll(context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.touch(); err != nil {
		return nil, err
	}
	var out []*models.Account
	for i := 1; i <= m.seq; i++ {
		if a, ok := m.byID[fmt.Sprintf("%024x", i)]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAccountRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Мок хранилища кодов
type memOTPStore struct {
	mu      sync.Mutex
	codes   map[string]models.OneTimeCode
	saveErr error
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{codes: make(map[string]models.OneTimeCode)}
}

func (m *memOTPStore) Save(_ context.Context, code *models.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.codes[code.Kind+"|"+code.Email] = *code
	return nil
}

func (m *memOTPStore) Get(_ context.Context, kind, email string) (*models.OneTimeCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[kind+"|"+email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (m *memOTPStore) DeleteIfCode(_ context.Context, kind, email, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[kind+"|"+email]
	if !ok || c.CodeHash != codeHash {
		return false, nil
	}
	delete(m.codes, kind+"|"+email)
	return true, nil
}

func (m *memOTPStore) Delete(_ context.Context, kind, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, kind+"|"+email)
	return nil
}

func (m *memOTPStore) has(kind, email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.codes[kind+"|"+email]
	return ok
}

// Мок доставки: запоминает последний код по адресу
type fakeDeliverer struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{sent: make(map[string]string)}
}

func (f *fakeDeliverer) SendOTP(_ context.Context, to, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent[to] = code
	return nil
}

func (f *fakeDeliverer) last(to string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[to]
}

// Мок файлового хранилища
type fakeStorage struct {
	stored []string
	err    error
}

func (f *fakeStorage) Store(_ context.Context, file UploadedFile, folder string) (string, error) {
	if f.err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, f.err)
	}
	body, _ := io.ReadAll(file.Body)
	url := fmt.Sprintf("https://cdn.test/%s/%s?%d", folder, file.Name, len(body))
	f.stored = append(f.stored, url)
	return url, nil
}

func fileOf(name, body string) *UploadedFile {
	return &UploadedFile{Name: name, Size: int64(len(body)), Body: bytes.NewBufferString(body)}
}

var errBoom = errors.New("boom")
