package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	Env    string // dev|prod
	Log    string
	LogDir string

	LogLevel string

	StoreDriver string // mongo|postgres
	MongoURI    string
	MongoDB     string

	DbHost    string
	DbPort    string
	DbUser    string
	DbPass    string
	DbName    string
	DbSSLMode string

	OTPStore      string // mongo|redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StoreTimeout time.Duration

	JWTSecret    string
	JWTExpiresIn time.Duration
	BcryptCost   int

	OTPLength    int
	OTPTTL       time.Duration
	OTPRetention time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	SMTPTimeout  time.Duration

	StorageDriver string // local|s3
	UploadDir     string
	PublicURL     string

	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3PublicURL    string

	DefaultImage string

	LoginRateMax       int
	LoginRateWindow    time.Duration
	RegisterRateMax    int
	RegisterRateWindow time.Duration
	OTPRateMax         int
	OTPRateWindow      time.Duration

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// LoadConfig загружает .env, читает переменные окружения и выставляет дефолты.
// Ничего не логирует: чтобы не создавать зависимость от logger.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	def := func(v, d string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		return v
	}

	var perr []string
	dur := func(key, d string) time.Duration {
		v, err := time.ParseDuration(def(os.Getenv(key), d))
		if err != nil {
			perr = append(perr, key)
			v, _ = time.ParseDuration(d)
		}
		return v
	}
	num := func(key string, d int) int {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return d
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			perr = append(perr, key)
			return d
		}
		return v
	}

	cfg := &Config{
		Port:     def(os.Getenv("PORT"), "8080"),
		Env:      strings.ToLower(def(os.Getenv("ENV"), "prod")),
		Log:      os.Getenv("LOG"),
		LogDir:   def(os.Getenv("LOG_DIR"), "logs"),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),

		StoreDriver: strings.ToLower(def(os.Getenv("STORE_DRIVER"), "mongo")),
		MongoURI:    def(os.Getenv("MONGO_URI"), "mongodb://127.0.0.1:27017"),
		MongoDB:     def(os.Getenv("MONGO_DB"), "accounts"),

		DbHost:    os.Getenv("DB_HOST"),
		DbPort:    def(os.Getenv("DB_PORT"), "5432"),
		DbUser:    os.Getenv("DB_USER"),
		DbPass:    os.Getenv("DB_PASSWORD"),
		DbName:    os.Getenv("DB_NAME"),
		DbSSLMode: def(os.Getenv("DB_SSLMODE"), "disable"),

		OTPStore:      strings.ToLower(def(os.Getenv("OTP_STORE"), "mongo")),
		RedisAddr:     def(os.Getenv("REDIS_ADDR"), "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       num("REDIS_DB", 0),

		StoreTimeout: dur("STORE_TIMEOUT", "5s"),

		JWTSecret:    os.Getenv("JWT_SECRET_KEY"),
		JWTExpiresIn: dur("JWT_EXPIRES_IN", "24h"),
		BcryptCost:   num("BCRYPT_COST", 12),

		OTPLength:    num("OTP_LENGTH", 6),
		OTPTTL:       dur("OTP_TTL", "10m"),
		OTPRetention: dur("OTP_RETENTION", "24h"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     def(os.Getenv("SMTP_PORT"), "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		SMTPTimeout:  dur("SMTP_TIMEOUT", "15s"),

		StorageDriver: strings.ToLower(def(os.Getenv("STORAGE_DRIVER"), "local")),
		UploadDir:     def(os.Getenv("UPLOAD_DIR"), "uploaded"),
		PublicURL:     strings.TrimRight(def(os.Getenv("PUBLIC_URL"), "http://localhost:8080"), "/"),

		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       def(os.Getenv("S3_REGION"), "us-east-1"),
		S3BaseEndpoint: os.Getenv("S3_BASE_ENDPOINT"),
		S3PublicURL:    strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),

		DefaultImage: def(os.Getenv("DEFAULT_IMAGE"), "https://via.placeholder.com/150"),

		LoginRateMax:       num("LOGIN_RATE_MAX", 50),
		LoginRateWindow:    dur("LOGIN_RATE_WINDOW", "1m"),
		RegisterRateMax:    num("REGISTER_RATE_MAX", 50),
		RegisterRateWindow: dur("REGISTER_RATE_WINDOW", "1h"),
		OTPRateMax:         num("OTP_RATE_MAX", 10),
		OTPRateWindow:      dur("OTP_RATE_WINDOW", "15m"),

		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     def(os.Getenv("ADMIN_NAME"), "Admin"),
	}

	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUser
	}

	if len(perr) > 0 {
		return cfg, fmt.Errorf("invalid values for %s", strings.Join(perr, ", "))
	}
	return cfg, nil
}

// Validate возвращает предупреждения и фатальную ошибку (если критично).
func (c *Config) Validate() (warnings []string, err error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is empty")
	}

	switch c.StoreDriver {
	case "mongo":
	case "postgres":
		if c.DbHost == "" || c.DbUser == "" || c.DbName == "" {
			return nil, fmt.Errorf("incomplete DB config (DB_HOST/DB_USER/DB_NAME)")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.OTPStore {
	case "mongo":
		if c.StoreDriver != "mongo" {
			warnings = append(warnings, "OTP_STORE=mongo with a non-mongo STORE_DRIVER still needs MONGO_URI")
		}
	case "redis":
	default:
		return nil, fmt.Errorf("unknown OTP_STORE %q", c.OTPStore)
	}

	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.OTPLength < 4 || c.OTPLength > 12 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 12")
	}

	if c.SMTPHost == "" || c.SMTPUser == "" {
		warnings = append(warnings, "SMTP is not fully configured, OTP codes will only be logged")
	}

	if c.AdminEmail == "" || c.AdminPassword == "" {
		warnings = append(warnings, "ADMIN_EMAIL/ADMIN_PASSWORD not set, bootstrap admin skipped")
	}

	return warnings, nil
}

// GetDSN: полная DSN (с паролем)
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbPass, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// GetDSNSafe: DSN без пароля (для логов)
func (c *Config) GetDSNSafe() string {
	return fmt.Sprintf(
		"postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}
