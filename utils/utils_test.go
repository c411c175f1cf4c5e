package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"kidsclub/config"
	"kidsclub/services/booking/entity"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{entity.NewValidationError("hours", "hours must be positive"), http.StatusBadRequest},
		{fmt.Errorf("load: %w", entity.ErrBookingNotFound), http.StatusNotFound},
		{entity.ErrScheduleNotFound, http.StatusNotFound},
		{&entity.DuplicatePackageError{}, http.StatusConflict},
		{&entity.SchedulingConflictError{}, http.StatusConflict},
		{&entity.InvalidStateError{Operation: "confirm"}, http.StatusConflict},
		{entity.ErrVersionConflict, http.StatusConflict},
		{fmt.Errorf("lock booking:child:x: %w", ErrLockTimeout), http.StatusConflict},
		{&entity.PaymentGatewayError{Message: "down"}, http.StatusPaymentRequired},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestExtractIdentity(t *testing.T) {
	prev := config.AppConfig
	t.Cleanup(func() { config.AppConfig = prev })

	config.AppConfig.JWTSecret = "first"
	token, err := GenerateToken("parent-1", "p@x.test", "", time.Hour)
	require.NoError(t, err)

	id, err := ExtractIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, TokenIdentity{Subject: "parent-1", Email: "p@x.test", Role: "parent"}, id)

	expired, err := GenerateToken("parent-1", "", "admin", -time.Minute)
	require.NoError(t, err)
	_, err = ExtractIdentity(expired)
	assert.Error(t, err)

	config.AppConfig.JWTSecret = "second"
	_, err = ExtractIdentity(token)
	assert.Error(t, err)

	config.AppConfig.JWTSecret = ""
	_, err = GenerateToken("parent-1", "", "", time.Hour)
	assert.Error(t, err)
}

func TestHealthStatus_Healthy(t *testing.T) {
	assert.True(t, HealthStatus{Mongo: true, Redis: map[string]bool{"cache": true}}.Healthy())
	assert.False(t, HealthStatus{Mongo: true, Redis: map[string]bool{"cache": true, "lock": false}}.Healthy())
	assert.False(t, HealthStatus{Mongo: false}.Healthy())
}

// testRedis connects to TEST_REDIS_ADDR; the test is skipped without it.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLocker(t *testing.T) {
	client := testRedis(t)
	locker, err := NewRedisLocker(client, time.Second, nil)
	require.NoError(t, err)
	locker.wait = 200 * time.Millisecond

	key := "booking:child:test-" + time.Now().Format("150405.000000")
	release, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), key)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release2, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client := testRedis(t)
	locker, err := NewRedisLocker(client, time.Second, nil)
	require.NoError(t, err)

	key := "booking:child:foreign-" + time.Now().Format("150405.000000")
	release, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	// Simulate expiry and another holder taking over.
	require.NoError(t, client.Set(context.Background(), key, "someone-else", time.Second).Err())
	release()

	val, err := client.Get(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}
