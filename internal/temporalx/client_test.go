package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

func TestClampBackoff(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, ClampBackoff(0, 0, 1))
	assert.Equal(t, 400*time.Millisecond, ClampBackoff(100*time.Millisecond, time.Second, 3))
	assert.Equal(t, time.Second, ClampBackoff(100*time.Millisecond, time.Second, 10))
	assert.Equal(t, time.Second, ClampBackoff(2*time.Second, time.Second, 1))
}

func TestIsRetryableRPC(t *testing.T) {
	assert.True(t, isRetryableRPC(status.Error(codes.Unavailable, "down")))
	assert.True(t, isRetryableRPC(context.DeadlineExceeded))
	assert.False(t, isRetryableRPC(status.Error(codes.PermissionDenied, "no")))
	assert.False(t, isRetryableRPC(errors.New("plain")))
	assert.False(t, isRetryableRPC(nil))
}

func TestRetry(t *testing.T) {
	cfg := Config{DialBackoff: time.Millisecond, DialBackoffMax: 2 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, time.Second, func(int) (bool, error) {
			calls++
			if calls < 3 {
				return true, errors.New("unavailable")
			}
			return false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, time.Second, func(int) (bool, error) {
			calls++
			return false, errors.New("denied")
		})
		assert.EqualError(t, err, "denied")
		assert.Equal(t, 1, calls)
	})

	t.Run("single attempt without wait budget", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, 0, func(int) (bool, error) {
			calls++
			return true, errors.New("unavailable")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := Config{DialBackoff: time.Minute}
		err := Retry(ctx, slow, time.Hour, func(int) (bool, error) {
			return true, errors.New("unavailable")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	log, err := logger.New("test")
	require.NoError(t, err)
	c, err := NewClient(context.Background(), log, Config{})
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Address: " temporal:7233 ", Namespace: " ", TaskQueue: "q"}
	cfg.Normalize()
	assert.Equal(t, "temporal:7233", cfg.Address)
	assert.Equal(t, "cms", cfg.Namespace)
	assert.Equal(t, "q", cfg.TaskQueue)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.True(t, cfg.Enabled())
}

func TestLoadTLSConfigRequiresCertAndKey(t *testing.T) {
	_, err := loadTLSConfig(Config{ClientCAPath: "/tmp/ca.pem"})
	assert.ErrorContains(t, err, "both required")
}
