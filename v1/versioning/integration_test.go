package versioning_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Aleph-Alpha/schemawatch/internal/testutil"
	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/observability"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
	"github.com/Aleph-Alpha/schemawatch/v1/redis"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

// sharedLocker stands in for the Redis lock shared by replicas.
type sharedLocker struct {
	mu sync.Mutex
}

func (l *sharedLocker) Lock(context.Context, string) (func(context.Context) error, error) {
	l.mu.Lock()
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, nil
}

// exerciseStore runs the shared store contract against a live backend.
func exerciseStore(t *testing.T, store versioning.ReadStore) {
	ctx := context.Background()

	t.Run("append and list", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			v, err := store.AppendVersionAtomic(ctx, versioning.SchemaVersion{
				Subject:           "auth-schema",
				Version:           i,
				Definition:        fmt.Sprintf(`{"f%d":"string"}`, i),
				CompatibilityMode: versioning.CompatibilityBackward,
				IsActive:          true,
				RegisteredAt:      time.Now().UTC(),
				RegisteredBy:      "integration",
			})
			require.NoError(t, err)
			assert.NotZero(t, v.ID)
		}

		versions, err := store.ListVersions(ctx, "auth-schema")
		require.NoError(t, err)
		require.Len(t, versions, 3)
		for i, v := range versions {
			assert.Equal(t, i+1, v.Version)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		_, err := store.AppendVersionAtomic(ctx, versioning.SchemaVersion{
			Subject:           "auth-schema",
			Version:           2,
			Definition:        `{"other":"string"}`,
			CompatibilityMode: versioning.CompatibilityBackward,
			RegisteredAt:      time.Now().UTC(),
		})
		assert.ErrorIs(t, err, versioning.ErrVersionConflict)

		versions, err := store.ListVersions(ctx, "auth-schema")
		require.NoError(t, err)
		assert.Len(t, versions, 3)
	})

	t.Run("readers", func(t *testing.T) {
		subjects, err := store.ListSubjects(ctx)
		require.NoError(t, err)
		assert.Contains(t, subjects, "auth-schema")

		v, err := store.GetVersion(ctx, "auth-schema", 2)
		require.NoError(t, err)
		assert.Equal(t, `{"f2":"string"}`, v.Definition)

		_, err = store.GetVersion(ctx, "auth-schema", 99)
		assert.ErrorIs(t, err, versioning.ErrNotFound)

		active, err := store.ListActive(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, active)
	})

	t.Run("concurrent allocators", func(t *testing.T) {
		// two allocators model two replicas sharing one store; with the
		// default retry budget they rely on a shared lock, as replicas do
		// with distributed_lock enabled
		cfg := versioning.Config{}
		locker := &sharedLocker{}
		allocators := []*versioning.Allocator{
			versioning.NewAllocator(store, cfg, nil).WithLocker(locker),
			versioning.NewAllocator(store, cfg, nil).WithLocker(locker),
		}

		const m = 20
		var wg sync.WaitGroup
		var mu sync.Mutex
		var got []int
		for i := 0; i < m; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := allocators[i%2].Register(ctx, "race-schema", fmt.Sprintf(`{"n%d":"integer"}`, i), "integration")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				got = append(got, v.Version)
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		sort.Ints(got)
		require.Len(t, got, m)
		for i, v := range got {
			assert.Equal(t, i+1, v)
		}
	})
}

func TestGormStoreWithFXModule(t *testing.T) {
	cfg := testutil.StartPostgres(t)

	rec := &observability.Recorder{}
	var store versioning.ReadStore
	var reg *versioning.Registry
	app := fxtest.New(t,
		fx.Provide(
			func() postgres.Config { return cfg },
			func() versioning.Config { return versioning.Config{Backend: versioning.BackendPostgres} },
			func() observability.Observer { return rec },
			logger.NewNop,
		),
		postgres.FXModule,
		versioning.FXModule,
		fx.Populate(&store, &reg),
	)
	app.RequireStart()
	defer app.RequireStop()

	exerciseStore(t, store)
	assert.NotEmpty(t, rec.Find("postgres", "append_version"))

	out := reg.Observe(context.Background(), "observe-schema", []byte(`{"service":"auth","code":200}`), "")
	require.NoError(t, out.Err)
	require.NotNil(t, out.Registered)
	assert.Equal(t, 1, out.Registered.Version)
}

func TestEtcdStore(t *testing.T) {
	endpoint := testutil.StartEtcd(t)

	cli, err := versioning.NewEtcdClient(versioning.EtcdConfig{Endpoints: []string{endpoint}})
	require.NoError(t, err)
	defer cli.Close()

	rec := &observability.Recorder{}
	store := versioning.NewEtcdStore(cli, "/schemawatch-test").WithObserver(rec)
	exerciseStore(t, store)
	assert.NotEmpty(t, rec.Find("etcd", "append_version"))
}

func TestRedisLockerAcrossAllocators(t *testing.T) {
	host, port := testutil.StartRedis(t)

	client, err := redis.NewClient(redis.Config{Host: host, Port: port, LockRetryDelay: 5 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	store := versioning.NewMemoryStore()
	locker := versioning.NewRedisLocker(client, "test:lock:", 5*time.Second)
	cfg := versioning.Config{MaxRetries: 1, RetryBackoff: time.Millisecond}

	// with the shared lock no attempt should ever hit a conflict
	allocators := []*versioning.Allocator{
		versioning.NewAllocator(store, cfg, nil).WithLocker(locker),
		versioning.NewAllocator(store, cfg, nil).WithLocker(locker),
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := allocators[i%2].Register(ctx, "locked-schema", fmt.Sprintf(`{"n%d":"integer"}`, i), "integration")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	versions, err := store.ListVersions(ctx, "locked-schema")
	require.NoError(t, err)
	assert.Len(t, versions, 10)
}
