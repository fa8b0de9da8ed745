package services

import (
	"accountsvc/internal/models"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestOTPService() (*OTPService, *memOTPStore, *fakeDeliverer, *testClock) {
	store := newMemOTPStore()
	deliverer := newFakeDeliverer()
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewOTPService(store, deliverer, 6, 10*time.Minute)
	svc.now = clock.Now
	return svc, store, deliverer, clock
}

func TestOTPStateMachine(t *testing.T) {
	ctx := context.Background()
	kind := models.UserKind
	email := "a@x.com"

	Convey("Given an account holder with no pending challenge", t, func() {
		svc, store, deliverer, clock := newTestOTPService()

		Convey("Validating any code yields NotFound", func() {
			err := svc.Validate(ctx, kind, email, "123456")
			So(errors.Is(err, models.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, models.ErrNoPendingOTP), ShouldBeTrue)
		})

		Convey("When a code is issued", func() {
			code, err := svc.Issue(ctx, kind, email)
			So(err, ShouldBeNil)
			So(code, ShouldHaveLength, 6)
			So(deliverer.last(email), ShouldEqual, code)

			Convey("The plaintext code is not stored", func() {
				rec, err := store.Get(ctx, kind.Name, email)
				So(err, ShouldBeNil)
				So(rec.CodeHash, ShouldNotEqual, code)
				So(rec.ExpiresAt.Equal(clock.Now().Add(10*time.Minute)), ShouldBeTrue)
			})

			Convey("Then validating the returned code succeeds exactly once", func() {
				So(svc.Validate(ctx, kind, email, code), ShouldBeNil)
				So(errors.Is(svc.Validate(ctx, kind, email, code), models.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then a wrong code yields Mismatch and keeps the challenge", func() {
				So(errors.Is(svc.Validate(ctx, kind, email, "wrong"), models.ErrMismatch), ShouldBeTrue)
				So(svc.Validate(ctx, kind, email, code), ShouldBeNil)
			})

			Convey("Then checking the code does not consume it", func() {
				So(svc.Check(ctx, kind, email, code), ShouldBeNil)
				So(svc.Check(ctx, kind, email, code), ShouldBeNil)
				So(svc.Validate(ctx, kind, email, code), ShouldBeNil)
			})

			Convey("Then the code is bound to the account kind", func() {
				So(errors.Is(svc.Validate(ctx, models.AdminKind, email, code), models.ErrNotFound), ShouldBeTrue)
			})

			Convey("And the clock passes the expiry", func() {
				clock.Advance(10 * time.Minute)

				Convey("Then validation yields Expired and the challenge is discarded", func() {
					So(errors.Is(svc.Validate(ctx, kind, email, code), models.ErrExpired), ShouldBeTrue)
					So(store.has(kind.Name, email), ShouldBeFalse)
					So(errors.Is(svc.Validate(ctx, kind, email, code), models.ErrNotFound), ShouldBeTrue)
				})

				Convey("Then a fresh issue and validate succeeds", func() {
					So(errors.Is(svc.Validate(ctx, kind, email, code), models.ErrExpired), ShouldBeTrue)
					fresh, err := svc.Issue(ctx, kind, email)
					So(err, ShouldBeNil)
					So(svc.Validate(ctx, kind, email, fresh), ShouldBeNil)
				})
			})

			Convey("And a second code is issued", func() {
				svc.generate = func(int) (string, error) { return "654321", nil }
				if code == "654321" {
					svc.generate = func(int) (string, error) { return "111111", nil }
				}
				second, err := svc.Issue(ctx, kind, email)
				So(err, ShouldBeNil)

				Convey("Then only the latest code is live", func() {
					So(errors.Is(svc.Validate(ctx, kind, email, code), models.ErrMismatch), ShouldBeTrue)
					So(svc.Validate(ctx, kind, email, second), ShouldBeNil)
				})
			})
		})

		Convey("When delivery fails", func() {
			deliverer.err = errBoom
			_, err := svc.Issue(ctx, kind, email)

			Convey("Then DeliveryFailed is returned and no challenge remains", func() {
				So(errors.Is(err, models.ErrDeliveryFailed), ShouldBeTrue)
				So(store.has(kind.Name, email), ShouldBeFalse)
			})

			Convey("Then a retry succeeds", func() {
				deliverer.err = nil
				code, err := svc.Issue(ctx, kind, email)
				So(err, ShouldBeNil)
				So(svc.Validate(ctx, kind, email, code), ShouldBeNil)
			})
		})
	})
}

func TestOTPService_StoreFailure(t *testing.T) {
	svc, store, deliverer, _ := newTestOTPService()
	store.saveErr = models.ErrStoreUnavailable

	_, err := svc.Issue(context.Background(), models.UserKind, "a@x.com")
	assert.True(t, errors.Is(err, models.ErrStoreUnavailable))
	assert.Empty(t, deliverer.last("a@x.com"))
}

func TestOTPService_GenerateFailure(t *testing.T) {
	svc, store, _, _ := newTestOTPService()
	svc.generate = func(int) (string, error) { return "", errBoom }

	_, err := svc.Issue(context.Background(), models.UserKind, "a@x.com")
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, store.has("user", "a@x.com"))
}

func TestOTPService_RollbackKeepsNewerCode(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestOTPService()

	// пока первое письмо уходило, успели выдать второй код
	svc.deliverer = deliverFunc(func(ctx context.Context, to, code string) error {
		svc.deliverer = newFakeDeliverer()
		svc.generate = func(int) (string, error) { return "999999", nil }
		_, err := svc.Issue(ctx, models.UserKind, to)
		require.NoError(t, err)
		return errBoom
	})
	svc.generate = func(int) (string, error) { return "111111", nil }

	_, err := svc.Issue(ctx, models.UserKind, "a@x.com")
	require.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.True(t, store.has("user", "a@x.com"))
	assert.NoError(t, svc.Validate(ctx, models.UserKind, "a@x.com", "999999"))
}

func TestOTPService_ConcurrentValidateConsumesOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestOTPService()
	code, err := svc.Issue(ctx, models.UserKind, "a@x.com")
	require.NoError(t, err)

	var ok, notFound int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Validate(ctx, models.UserKind, "a@x.com", code)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, models.ErrNotFound):
				atomic.AddInt32(&notFound, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(15), notFound)
}

func TestOTPService_Revoke(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestOTPService()
	_, err := svc.Issue(ctx, models.AdminKind, "root@x.com")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, models.AdminKind, "root@x.com"))
	assert.False(t, store.has("admin", "root@x.com"))
}

type deliverFunc func(ctx context.Context, to, code string) error

func (f deliverFunc) SendOTP(ctx context.Context, to, code string) error { return f(ctx, to, code) }
