package routes

import (
	"accountsvc/internal/models"
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Репозиторий аккаунтов в памяти, уникальность email как у индекса
type memRepo struct {
	mu   sync.Mutex
	kind models.Kind
	byID map[string]*models.Account
	seq  int
	err  error
}

func newMemRepo(kind models.Kind) *memRepo {
	return &memRepo{kind: kind, byID: map[string]*models.Account{}}
}

var hexID = regexp.MustCompile(`^[0-9a-f]{24}$`)

func (m *memRepo) ValidID(id string) bool { return hexID.MatchString(id) }

func (m *memRepo) EnsureSchema(context.Context) error { return nil }

func (m *memRepo) find(pred func(*models.Account) bool) *models.Account {
	for _, a := range m.byID {
		if pred(a) {
			return a
		}
	}
	return nil
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a := m.find(func(a *models.Account) bool { return a.Email == email })
	if a == nil {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) Insert(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.find(func(a *models.Account) bool { return a.Email == acc.Email }) != nil {
		return models.ErrAlreadyExists
	}
	m.seq++
	acc.ID = fmt.Sprintf("%024x", m.seq)
	acc.CreatedAt = time.Now().UTC()
	cp := *acc
	m.byID[acc.ID] = &cp
	return nil
}

func (m *memRepo) update(a *models.Account, upd models.AccountUpdate) *models.Account {
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

func (m *memRepo) FindAndUpdateByID(_ context.Context, id string, upd models.AccountUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return m.update(a, upd), nil
}

func (m *memRepo) FindAndUpdateByEmail(_ context.Context, email string, upd models.AccountUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.find(func(a *models.Account) bool { return a.Email == email })
	if a == nil {
		return nil, models.ErrNotFound
	}
	return m.update(a, upd), nil
}

func (m *memRepo) DeleteByID(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return 0, nil
	}
	delete(m.byID, id)
	return 1, nil
}

func (m *memRepo) ListAll(context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
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

// Доставка кодов: запоминает последний код по адресу
type inbox struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func (b *inbox) SendOTP(_ context.Context, to, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.sent == nil {
		b.sent = map[string]string{}
	}
	b.sent[to] = code
	return nil
}

func (b *inbox) last(to string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[to]
}
