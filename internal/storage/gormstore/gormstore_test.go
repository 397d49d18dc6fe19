package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/token-scanner/internal/storage"
	"github.com/rovshanmuradov/token-scanner/internal/storage/models"
)

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	st, err := NewStorage(DriverSQLite, ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, st.RunMigrations())
	t.Cleanup(func() { st.Close() })
	return st
}

func TestThrottleUpsert(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.GetThrottle(ctx, "42")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first := time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)
	require.NoError(t, st.SaveThrottle(ctx, &models.ThrottleRecord{UserID: "42", NextAllowedAt: first}))

	got, err := st.GetThrottle(ctx, "42")
	require.NoError(t, err)
	assert.True(t, first.Equal(got.NextAllowedAt))

	second := first.Add(time.Minute)
	require.NoError(t, st.SaveThrottle(ctx, &models.ThrottleRecord{UserID: "42", NextAllowedAt: second}))

	got, err = st.GetThrottle(ctx, "42")
	require.NoError(t, err)
	assert.True(t, second.Equal(got.NextAllowedAt))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := NewStorage("mysql", "dsn", nil)
	assert.Error(t, err)
}
