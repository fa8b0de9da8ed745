package repository

import (
	"accountsvc/internal/models"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// deleteIfCodeScript удаляет запись только если хеш кода совпадает.
var deleteIfCodeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
local rec = cjson.decode(v)
if rec.codeHash ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

type RedisOTPStore struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

func NewRedisOTPStore(client redis.UniversalClient, retention time.Duration) *RedisOTPStore {
	return &RedisOTPStore{client: client, retention: retention, now: time.Now}
}

func otpKey(kind, email string) string {
	return "otp:" + kind + ":" + email
}

func (s *RedisOTPStore) EnsureSchema(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storeErr("redis ping", err)
	}
	return nil
}

func (s *RedisOTPStore) Save(ctx context.Context, code *models.OneTimeCode) error {
	raw, err := json.Marshal(code)
	if err != nil {
		return err
	}

	ttl := code.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, otpKey(code.Kind, code.Email), raw, ttl).Err(); err != nil {
		return storeErr("save otp", err)
	}
	return nil
}

func (s *RedisOTPStore) Get(ctx context.Context, kind, email string) (*models.OneTimeCode, error) {
	raw, err := s.client.Get(ctx, otpKey(kind, email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get otp", err)
	}

	var code models.OneTimeCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, storeErr("decode otp", err)
	}
	return &code, nil
}

func (s *RedisOTPStore) DeleteIfCode(ctx context.Context, kind, email, codeHash string) (bool, error) {
	n, err := deleteIfCodeScript.Run(ctx, s.client, []string{otpKey(kind, email)}, codeHash).Int()
	if err != nil {
		return false, storeErr("delete otp", err)
	}
	return n == 1, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, kind, email string) error {
	if err := s.client.Del(ctx, otpKey(kind, email)).Err(); err != nil {
		return storeErr("delete otp", err)
	}
	return nil
}
