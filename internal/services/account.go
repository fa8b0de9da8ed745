package services

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"accountsvc/internal/repository"
	"accountsvc/internal/utils"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// AccountPatch: скалярные поля, которые клиент может поменять через update.
// Email и прочие поля не принимаются вовсе.
type AccountPatch struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// ImageUploads: файлы из полей single (displayImage) и multiple (coverImage).
type ImageUploads struct {
	Display *UploadedFile
	Cover   *UploadedFile
}

// AccountService реализует сценарии одного вида аккаунтов.
type AccountService struct {
	kind         models.Kind
	repo         repository.AccountRepo
	otp          *OTPService
	hasher       *utils.PasswordHasher
	tokens       *utils.TokenIssuer
	storage      FileStorage
	defaultImage string
}

func NewAccountService(
	kind models.Kind,
	repo repository.AccountRepo,
	otp *OTPService,
	hasher *utils.PasswordHasher,
	tokens *utils.TokenIssuer,
	storage FileStorage,
	defaultImage string,
) *AccountService {
	return &AccountService{
		kind:         kind,
		repo:         repo,
		otp:          otp,
		hasher:       hasher,
		tokens:       tokens,
		storage:      storage,
		defaultImage: defaultImage,
	}
}

func (s *AccountService) Kind() models.Kind {
	return s.kind
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*models.AccountView, error) {
	email = models.NormalizeEmail(email)
	logger.Log.Info("Попытка входа (service)", zap.String("kind", s.kind.Name), zap.String("email", email))

	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		logger.Log.Warn("Аккаунт для входа не найден (service)", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if !s.hasher.Compare(password, acc.PasswordHash) {
		logger.Log.Warn("Неверный пароль (service)", zap.String("kind", s.kind.Name), zap.String("email", email))
		return nil, models.ErrInvalidCredential
	}

	return s.withToken(acc)
}

func (s *AccountService) Register(ctx context.Context, name, email, password string) (*models.AccountView, error) {
	logger.Log.Info("Регистрация (service)", zap.String("kind", s.kind.Name), zap.String("email", email))

	if err := checkPassword("password", password); err != nil {
		logger.Log.Warn("Невалидный пароль при регистрации (service)", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	acc, err := models.NewAccount(s.kind, utils.PlainText(name), email, s.defaultImage)
	if err != nil {
		logger.Log.Warn("Невалидные данные регистрации (service)", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	// быстрый путь, окончательно решает уникальный индекс при вставке
	_, err = s.repo.FindByEmail(ctx, acc.Email)
	switch {
	case err == nil:
		logger.Log.Warn("Email уже занят (service)", zap.String("kind", s.kind.Name), zap.String("email", acc.Email))
		return nil, models.ErrAlreadyExists
	case !errors.Is(err, models.ErrNotFound):
		logger.Log.Error("Ошибка проверки email (service)", zap.String("email", acc.Email), zap.Error(err))
		return nil, err
	}

	acc.PasswordHash, err = s.hasher.Hash(password)
	if err != nil {
		logger.Log.Error("Ошибка хеширования пароля (service)", zap.Error(err))
		return nil, err
	}

	if err := s.repo.Insert(ctx, acc); err != nil {
		logger.Log.Warn("Ошибка создания аккаунта (service)", zap.String("email", acc.Email), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("Аккаунт зарегистрирован (service)", zap.String("kind", s.kind.Name), zap.String("id", acc.ID))
	return s.withToken(acc)
}

// EnsureAccount создаёт аккаунт, если такого email ещё нет. Для начального админа.
func (s *AccountService) EnsureAccount(ctx context.Context, name, email, password string) (bool, error) {
	_, err := s.Register(ctx, name, email, password)
	if errors.Is(err, models.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AccountService) withToken(acc *models.Account) (*models.AccountView, error) {
	token, err := s.tokens.Issue(acc.Email, s.kind.Name)
	if err != nil {
		logger.Log.Error("Ошибка генерации токена (service)", zap.String("email", acc.Email), zap.Error(err))
		return nil, err
	}
	view := acc.View()
	view.Token = token
	return view, nil
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*models.AccountView, error) {
	if !s.repo.ValidID(id) {
		return nil, models.ErrInvalidIdentifier
	}
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return acc.View(), nil
}

func (s *AccountService) ListAll(ctx context.Context) ([]*models.AccountView, error) {
	accounts, err := s.repo.ListAll(ctx)
	if err != nil {
		logger.Log.Error("Ошибка получения списка аккаунтов (service)", zap.String("kind", s.kind.Name), zap.Error(err))
		return nil, err
	}
	views := make([]*models.AccountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, acc.View())
	}
	return views, nil
}

// UpdateByID загружает картинки, хеширует пароль и одним find-and-update сохраняет изменения.
func (s *AccountService) UpdateByID(ctx context.Context, id string, patch AccountPatch, files ImageUploads) (*models.AccountView, error) {
	if !s.repo.ValidID(id) {
		logger.Log.Warn("Невалидный идентификатор (service)", zap.String("kind", s.kind.Name), zap.String("id", id))
		return nil, models.ErrInvalidIdentifier
	}

	var upd models.AccountUpdate

	if patch.Name != nil {
		name := utils.PlainText(*patch.Name)
		if name == "" {
			return nil, models.Invalid("name is required")
		}
		upd.Name = &name
	}

	if patch.Password != nil && *patch.Password != "" {
		if err := utils.CheckPasswordLength(*patch.Password); err != nil {
			logger.Log.Warn("Невалидный пароль при обновлении (service)", zap.String("id", id), zap.Error(err))
			return nil, err
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			logger.Log.Error("Ошибка хеширования пароля (service)", zap.Error(err))
			return nil, err
		}
		upd.Password = &hash
	}

	if files.Display != nil {
		url, err := s.storage.Store(ctx, *files.Display, s.kind.Collection)
		if err != nil {
			return nil, err
		}
		upd.DisplayImage = &url
	}

	if files.Cover != nil && s.kind.HasCoverImage {
		url, err := s.storage.Store(ctx, *files.Cover, s.kind.Collection)
		if err != nil {
			return nil, err
		}
		upd.CoverImage = &url
	}

	acc, err := s.repo.FindAndUpdateByID(ctx, id, upd)
	if err != nil {
		logger.Log.Warn("Ошибка обновления аккаунта (service)", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("Аккаунт обновлён (service)", zap.String("kind", s.kind.Name), zap.String("id", id))
	return acc.View(), nil
}

// RequestPasswordReset выдаёт код сброса существующему аккаунту.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	logger.Log.Info("Запрос кода сброса (service)", zap.String("kind", s.kind.Name), zap.String("email", email))

	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		logger.Log.Warn("Аккаунт для сброса не найден (service)", zap.String("email", email), zap.Error(err))
		return err
	}

	_, err = s.otp.Issue(ctx, s.kind, acc.Email)
	return err
}

func (s *AccountService) CheckResetCode(ctx context.Context, email, code string) error {
	return s.otp.Check(ctx, s.kind, models.NormalizeEmail(email), code)
}

func (s *AccountService) ResetByOTP(ctx context.Context, email, code, newPassword string) (*models.AccountView, error) {
	email = models.NormalizeEmail(email)
	logger.Log.Info("Сброс пароля по коду (service)", zap.String("kind", s.kind.Name), zap.String("email", email))

	if err := checkPassword("newPassword", newPassword); err != nil {
		logger.Log.Warn("Невалидный новый пароль (service)", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if err := s.otp.Validate(ctx, s.kind, email, code); err != nil {
		return nil, err
	}

	return s.setPassword(ctx, email, newPassword)
}

func (s *AccountService) ResetByOldPassword(ctx context.Context, email, oldPassword, newPassword string) (*models.AccountView, error) {
	email = models.NormalizeEmail(email)
	logger.Log.Info("Смена пароля по старому паролю (service)", zap.String("kind", s.kind.Name), zap.String("email", email))

	if err := checkPassword("newPassword", newPassword); err != nil {
		logger.Log.Warn("Невалидный новый пароль (service)", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(oldPassword, acc.PasswordHash) {
		logger.Log.Warn("Старый пароль не совпадает (service)", zap.String("email", email))
		return nil, models.ErrInvalidCredential
	}

	view, err := s.setPassword(ctx, email, newPassword)
	if err != nil {
		return nil, err
	}
	// после смены пароля выданный ранее код сброса больше не нужен
	_ = s.otp.Revoke(ctx, s.kind, email)
	return view, nil
}

// checkPassword проверяет пароль до любых обращений к хранилищу и до погашения кода.
func checkPassword(field, password string) error {
	if password == "" {
		return models.Invalid("%s is required", field)
	}
	return utils.CheckPasswordLength(password)
}

func (s *AccountService) setPassword(ctx context.Context, email, password string) (*models.AccountView, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		logger.Log.Error("Ошибка хеширования пароля (service)", zap.Error(err))
		return nil, err
	}

	acc, err := s.repo.FindAndUpdateByEmail(ctx, email, models.AccountUpdate{Password: &hash})
	if err != nil {
		logger.Log.Warn("Ошибка обновления пароля (service)", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("Пароль обновлён (service)", zap.String("kind", s.kind.Name), zap.String("email", email))
	return acc.View(), nil
}

// DeleteByID удаляет аккаунт и возвращает подтверждение с идентификатором.
func (s *AccountService) DeleteByID(ctx context.Context, id string) (string, error) {
	if !s.repo.ValidID(id) {
		return "", models.ErrInvalidIdentifier
	}

	n, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		logger.Log.Error("Ошибка удаления аккаунта (service)", zap.String("id", id), zap.Error(err))
		return "", err
	}
	if n == 0 {
		logger.Log.Warn("Нечего удалять (service)", zap.String("kind", s.kind.Name), zap.String("id", id))
		return "", fmt.Errorf("no %s with id %s: %w", s.kind.Name, id, models.ErrNotFound)
	}

	logger.Log.Info("Аккаунт удалён (service)", zap.String("kind", s.kind.Name), zap.String("id", id))
	return fmt.Sprintf("%s deleted successfully with id: %s", s.kind.Title(), id), nil
}

// Authenticate проверяет bearer-токен и находит его владельца этого вида.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != "" && claims.Kind != s.kind.Name {
		logger.Log.Warn("Токен другого вида аккаунта (service)", zap.String("want", s.kind.Name), zap.String("got", claims.Kind))
		return nil, models.ErrInvalidToken
	}
	return s.repo.FindByEmail(ctx, claims.Email)
}
