package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/tddf_uploader/pkg/storage"
	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

func TestObjectKey(t *testing.T) {
	name := "VERMNTSB.6759_TDDF_2400_11282022_000826.TSYSO"
	parsed := tddf.Parse(name)
	require.True(t, parsed.ParseSuccess)
	assert.Equal(t, "2022/11/29/"+name, storage.ObjectKey("/data/inbox/"+name, parsed))

	bad := tddf.Parse("report.csv")
	assert.Equal(t, "unparsed/report.csv", storage.ObjectKey("report.csv", bad))
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"2023/01/15/a.TSYSO", "", true},
		{"2023/01/15/a.TSYSO", "*", true},
		{"2023/01/15/a.TSYSO", "*.TSYSO", true},
		{"2023/01/15/a.TSYSO", "*.csv", false},
		{"2023/01/15/a.TSYSO", "2023/01/*/a.TSYSO", true},
		{"2023/01/15/a.TSYSO", "2023/02/*", false},
		{"a.TSYSO", "a.TSYSO", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, storage.MatchGlob(tt.name, tt.pattern), "%s ~ %s", tt.name, tt.pattern)
	}
}

func TestListPrefix(t *testing.T) {
	assert.Equal(t, "2023/01/", storage.ListPrefix("2023/01/*"))
	assert.Equal(t, "", storage.ListPrefix("*.TSYSO"))
	assert.Equal(t, "unparsed/x", storage.ListPrefix("unparsed/x"))
}

func TestOptions(t *testing.T) {
	opts := map[string]interface{}{
		"bucket": "tddf",
		"empty":  "",
		"ssl":    false,
		"port":   float64(2222),
		"native": 7,
	}

	assert.Equal(t, "tddf", storage.StringOption(opts, "bucket", "x"))
	assert.Equal(t, "x", storage.StringOption(opts, "missing", "x"))
	assert.False(t, storage.BoolOption(opts, "ssl", true))
	assert.True(t, storage.BoolOption(opts, "missing", true))
	assert.Equal(t, 2222, storage.IntOption(opts, "port", 22))
	assert.Equal(t, 7, storage.IntOption(opts, "native", 0))
	assert.Equal(t, 22, storage.IntOption(opts, "missing", 22))

	v, err := storage.RequireString(opts, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "tddf", v)

	_, err = storage.RequireString(opts, "empty")
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)
	assert.Contains(t, err.Error(), `"empty"`)
}

func TestWithRetry(t *testing.T) {
	cfg := storage.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	t.Run("retries_retryable", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return storage.ErrConnFailed
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops_on_permanent", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), cfg, func() error {
			calls++
			return storage.ErrAuthFailed
		})
		assert.ErrorIs(t, err, storage.ErrAuthFailed)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives_up", func(t *testing.T) {
		calls := 0
		err := storage.WithRetry(context.Background(), cfg, func() error {
			calls++
			return errors.Join(storage.ErrTimeout, errors.New("slow"))
		})
		assert.ErrorIs(t, err, storage.ErrTimeout)
		assert.Equal(t, 3, calls)
	})

	t.Run("context_done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := storage.RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 2}
		err := storage.WithRetry(ctx, slow, func() error { return storage.ErrConnFailed })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFactory(t *testing.T) {
	f := storage.NewFactory()

	_, err := f.Create(context.Background(), storage.Config{Name: "x", Type: "carrier-pigeon", Enabled: true})
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)

	_, err = f.Create(context.Background(), storage.Config{Name: "x", Type: "local", Enabled: false})
	assert.Error(t, err)

	backends, err := f.CreateAll(context.Background(), []storage.Config{{Name: "off", Type: "s3", Enabled: false}})
	require.NoError(t, err)
	assert.Empty(t, backends)
}
