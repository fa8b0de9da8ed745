package services

import (
	"accountsvc/internal/config"
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadedFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileStorage превращает загруженный файл в ссылку на него.
type FileStorage interface {
	Store(ctx context.Context, file UploadedFile, folder string) (string, error)
}

func storageKey(folder, name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return path.Join(folder, uuid.NewString()+"_"+name)
}

// LocalStorage кладёт файлы в каталог на диске, раздаваемый роутером по /uploads/.
type LocalStorage struct {
	dir       string
	publicURL string
}

func NewLocalStorage(dir, publicURL string) *LocalStorage {
	return &LocalStorage{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *LocalStorage) Store(ctx context.Context, file UploadedFile, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}

	key := storageKey(folder, file.Name)
	fullPath := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		logger.Log.Error("Ошибка при сохранении файла", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file.Body); err != nil {
		_ = os.Remove(fullPath)
		logger.Log.Error("Ошибка записи файла", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}

	logger.Log.Info("Файл сохранён", zap.String("path", fullPath))
	return s.publicURL + "/uploads/" + key, nil
}

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage загружает файлы в S3-совместимое хранилище (MinIO и т.п.).
type S3Storage struct {
	client    s3PutAPI
	bucket    string
	publicURL string
}

func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.S3PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.S3BaseEndpoint, "/") + "/" + cfg.S3Bucket
	}
	return &S3Storage{client: client, bucket: cfg.S3Bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *S3Storage) Store(ctx context.Context, file UploadedFile, folder string) (string, error) {
	key := storageKey(folder, file.Name)

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file.Body,
	}
	if file.ContentType != "" {
		in.ContentType = aws.String(file.ContentType)
	}
	if file.Size > 0 {
		in.ContentLength = aws.Int64(file.Size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		logger.Log.Error("Ошибка загрузки файла в S3", zap.String("bucket", s.bucket), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}

	logger.Log.Info("Файл загружен в S3", zap.String("bucket", s.bucket), zap.String("key", key))
	return s.publicURL + "/" + key, nil
}
