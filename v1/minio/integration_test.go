package minio_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Aleph-Alpha/schemawatch/internal/testutil"
	"github.com/Aleph-Alpha/schemawatch/v1/minio"
)

func minioConfig(endpoint string, create bool) minio.Config {
	return minio.Config{
		Connection: minio.ConnectionConfig{
			Endpoint:             endpoint,
			AccessKeyID:          "minioadmin",
			SecretAccessKey:      "minioadmin",
			BucketName:           "schemawatch-test",
			Region:               "us-east-1",
			AccessBucketCreation: create,
		},
		Prefix: "quarantine",
	}
}

func TestBucketMustExistWithoutCreation(t *testing.T) {
	endpoint := testutil.StartMinio(t)

	_, err := minio.NewClient(minioConfig(endpoint, false))
	assert.ErrorIs(t, err, minio.ErrBucketNotFound)
}

func TestPutGetDeleteIntegration(t *testing.T) {
	endpoint := testutil.StartMinio(t)
	cfg := minioConfig(endpoint, true)

	var client *minio.MinioClient
	app := fxtest.New(t,
		fx.Provide(func() minio.Config { return cfg }),
		minio.FXModule,
		fx.Populate(&client),
	)
	app.RequireStart()
	defer app.RequireStop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw := []byte(`{"user_id": 123, "broken`)
	key, err := client.Put(ctx, "auth-service/rec-1.json", raw, "application/octet-stream", map[string]string{"topic": "raw-data"})
	require.NoError(t, err)
	assert.Equal(t, "quarantine/auth-service/rec-1.json", key)

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	require.NoError(t, client.Delete(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, minio.ErrObjectNotFound)

	client.GracefulShutdown()
	_, err = client.Put(ctx, "late.json", raw, "", nil)
	assert.ErrorIs(t, err, minio.ErrClosed)
}
