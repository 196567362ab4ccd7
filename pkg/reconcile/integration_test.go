//go:build integration
// +build integration

package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	ledgermocks "github.com/williamokano/tddf_uploader/pkg/ledger/mocks"
	"github.com/williamokano/tddf_uploader/pkg/storage"
	_ "github.com/williamokano/tddf_uploader/pkg/storage/s3"
	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

func setupLocalStack(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0",
		testcontainers.WithEnv(map[string]string{"SERVICES": "s3"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func createBucket(ctx context.Context, t *testing.T, endpoint, bucket string) {
	t.Helper()

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)
}

func TestReconcileAgainstS3(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	endpoint := setupLocalStack(ctx, t)
	createBucket(ctx, t, endpoint, "tddf-archive")

	backend, err := storage.NewFactory().Create(ctx, storage.Config{
		Name:    "offsite",
		Type:    "s3",
		Enabled: true,
		Options: map[string]interface{}{
			"endpoint":          endpoint,
			"region":            "us-east-1",
			"bucket":            "tddf-archive",
			"prefix":            "tddf/",
			"access_key_id":     "test",
			"secret_access_key": "test",
			"use_ssl":           false,
			"force_path_style":  true,
		},
	})
	require.NoError(t, err)
	defer backend.Close()

	uploaded := []string{
		"VERMNTSB.6759_TDDF_830_01152023_083045.TSYSO",
		"VERMNTSB.6759_TDDF_2400_11282022_000826.TSYSO",
	}
	for _, name := range uploaded {
		src := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(src, []byte("TDDF"), 0644))
		require.NoError(t, backend.Write(ctx, src, storage.ObjectKey(name, tddf.Parse(name))))
	}

	recorded := append([]string{"VERMNTSB.6759_TDDF_900_01162023_090000.TSYSO"}, uploaded...)
	store := ledgermocks.NewMockStore(t)
	store.On("Count", ctx).Return(len(recorded), nil)
	store.On("Filenames", ctx).Return(recorded, nil)

	results, err := Run(ctx, store, []storage.Backend{backend}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 2, results[0].BackendCount)
	assert.Equal(t, []string{"VERMNTSB.6759_TDDF_900_01162023_090000.TSYSO"}, results[0].Missing)
	assert.Empty(t, results[0].Extra)
}
