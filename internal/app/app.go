package app

import (
	"accountsvc/internal/config"
	"accountsvc/internal/db"
	"accountsvc/internal/handlers"
	"accountsvc/internal/logger"
	"accountsvc/internal/middleware"
	"accountsvc/internal/models"
	"accountsvc/internal/repository"
	"accountsvc/internal/routes"
	"accountsvc/internal/services"
	"accountsvc/internal/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	maxUploadSize = 10 << 20
	logRetention  = 14
	setupTimeout  = 30 * time.Second
)

type schemaStore interface {
	services.OTPStore
	EnsureSchema(ctx context.Context) error
}

// App: собранный сервис: роутер и функция освобождения соединений.
type App struct {
	Router *mux.Router

	Users  *services.AccountService
	Admins *services.AccountService

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func InitApp(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Mongo нужна и для аккаунтов, и для кодов: подключаемся один раз
	var mongoDB *mongo.Database
	needMongo := cfg.StoreDriver == "mongo" || cfg.OTPStore == "mongo"
	if needMongo {
		client, database, err := db.NewMongoConnection(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		mongoDB = database
	}

	// Репозитории
	var userRepo, adminRepo repository.AccountRepo
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.NewPostgresConnection(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := db.RunMigrations(ctx, pool); err != nil {
			return nil, err
		}
		userRepo = repository.NewPostgresAccountRepository(pool, models.UserKind, cfg.StoreTimeout)
		adminRepo = repository.NewPostgresAccountRepository(pool, models.AdminKind, cfg.StoreTimeout)
	case "mongo":
		userRepo = repository.NewMongoAccountRepository(mongoDB, models.UserKind, cfg.StoreTimeout)
		adminRepo = repository.NewMongoAccountRepository(mongoDB, models.AdminKind, cfg.StoreTimeout)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var otpStore schemaStore
	switch cfg.OTPStore {
	case "redis":
		rdb, err := db.NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		otpStore = repository.NewRedisOTPStore(rdb, cfg.OTPRetention)
	case "mongo":
		otpStore = repository.NewMongoOTPStore(mongoDB, cfg.OTPRetention, cfg.StoreTimeout)
	default:
		return nil, fmt.Errorf("unknown OTP_STORE %q", cfg.OTPStore)
	}

	for _, s := range []interface{ EnsureSchema(context.Context) error }{userRepo, adminRepo, otpStore} {
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	// Сервисы
	var deliverer services.OTPDeliverer = services.LogDeliverer{}
	if cfg.SMTPHost != "" {
		deliverer = services.NewEmailService(cfg)
	}

	var storage services.FileStorage
	uploadDir := ""
	switch cfg.StorageDriver {
	case "s3":
		s3, err := services.NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		storage = s3
	default:
		storage = services.NewLocalStorage(cfg.UploadDir, cfg.PublicURL)
		uploadDir = cfg.UploadDir
	}

	otpService := services.NewOTPService(otpStore, deliverer, cfg.OTPLength, cfg.OTPTTL)
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)

	a.Users = services.NewAccountService(models.UserKind, userRepo, otpService, hasher, tokens, storage, cfg.DefaultImage)
	a.Admins = services.NewAccountService(models.AdminKind, adminRepo, otpService, hasher, tokens, storage, cfg.DefaultImage)

	if err := ensureBootstrapAdmin(ctx, cfg, a.Admins); err != nil {
		return nil, err
	}

	// Маршруты
	a.Router = mux.NewRouter()
	routes.InitRoutes(a.Router, routes.Deps{
		Users:           handlers.NewAccountHandler(a.Users, maxUploadSize),
		Admins:          handlers.NewAccountHandler(a.Admins, maxUploadSize),
		Logs:            handlers.NewAdminLogsHandler(cfg.LogDir, logRetention),
		AdminAuth:       a.Admins,
		LoginLimiter:    middleware.NewRateLimiter(cfg.LoginRateMax, cfg.LoginRateWindow, "login"),
		RegisterLimiter: middleware.NewRateLimiter(cfg.RegisterRateMax, cfg.RegisterRateWindow, "registration"),
		OTPLimiter:      middleware.NewRateLimiter(cfg.OTPRateMax, cfg.OTPRateWindow, "OTP verification"),
		UploadDir:       uploadDir,
	})

	ok = true
	return a, nil
}

// ensureBootstrapAdmin заводит первого администратора, иначе зарегистрировать
// админа некому: /admins/register сам требует админский токен.
func ensureBootstrapAdmin(ctx context.Context, cfg *config.Config, admins *services.AccountService) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	created, err := admins.EnsureAccount(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("bootstrap admin: %s", ve.Msg)
		}
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Log.Info("Создан начальный администратор", zap.String("email", cfg.AdminEmail))
	}
	return nil
}
