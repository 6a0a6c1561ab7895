package versioning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fastConfig() Config {
	return Config{StoreTimeout: time.Second, MaxRetries: 3, RetryBackoff: time.Millisecond}
}

func TestRegisterSequential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	a := NewAllocator(store, fastConfig(), nil).WithClock(func() time.Time { return fixed })

	const n = 10
	for i := 1; i <= n; i++ {
		v, err := a.Register(ctx, "auth-schema", fmt.Sprintf(`{"f%d":"string"}`, i), "tester")
		require.NoError(t, err)
		assert.Equal(t, i, v.Version)
		assert.True(t, v.IsActive)
		assert.Equal(t, CompatibilityBackward, v.CompatibilityMode)
		assert.Equal(t, "tester", v.RegisteredBy)
		assert.Equal(t, time.UTC, v.RegisteredAt.Location())
		assert.True(t, fixed.Equal(v.RegisteredAt))
		assert.NotZero(t, v.ID)
	}

	versions, err := store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	require.Len(t, versions, n)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
	}
}

func TestRegisterConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := NewAllocator(store, fastConfig(), nil)

	const m = 50
	var wg sync.WaitGroup
	results := make(chan int, m)
	errs := make(chan error, m)
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := a.Register(ctx, "auth-schema", fmt.Sprintf(`{"f%d":"string"}`, i), "tester")
			if err != nil {
				errs <- err
				return
			}
			results <- v.Version
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []int
	for v := range results {
		got = append(got, v)
	}
	sort.Ints(got)
	require.Len(t, got, m)
	for i, v := range got {
		assert.Equal(t, i+1, v)
	}
	assert.Zero(t, a.locks.size())
}

// racingStore lets a competing writer take every version number once before
// the allocator's own append goes through.
type racingStore struct {
	*MemoryStore
	mu      sync.Mutex
	stolen  map[int]bool
	appends int
}

func (s *racingStore) AppendVersionAtomic(ctx context.Context, c SchemaVersion) (SchemaVersion, error) {
	s.mu.Lock()
	s.appends++
	steal := !s.stolen[c.Version]
	s.stolen[c.Version] = true
	s.mu.Unlock()

	if steal {
		rival := c
		rival.Definition = `{"rival":"string"}`
		rival.RegisteredBy = "other-replica"
		if _, err := s.MemoryStore.AppendVersionAtomic(ctx, rival); err != nil {
			return SchemaVersion{}, err
		}
	}
	return s.MemoryStore.AppendVersionAtomic(ctx, c)
}

func TestRegisterRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryStore: NewMemoryStore(), stolen: map[int]bool{}}
	store.stolen[2] = true

	a := NewAllocator(store, fastConfig(), nil)
	v, err := a.Register(ctx, "auth-schema", authV1, "tester")
	require.NoError(t, err)

	// version 1 went to the rival, the retry recomputed 2
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, 2, store.appends)

	versions, err := store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "other-replica", versions[0].RegisteredBy)
	assert.Equal(t, authV1, versions[1].Definition)
}

func TestRegisterConflictExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	metrics := NewMockMetrics(ctrl)

	cfg := fastConfig()
	attempts := cfg.MaxRetries + 1

	store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return(nil, nil).Times(attempts)
	store.EXPECT().AppendVersionAtomic(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c SchemaVersion) (SchemaVersion, error) {
			assert.Equal(t, 1, c.Version)
			return SchemaVersion{}, ErrVersionConflict
		}).Times(attempts)
	metrics.EXPECT().RecordRegistrationFailure("conflict")

	a := NewAllocator(store, cfg, nil).WithMetrics(metrics)
	_, err := a.Register(context.Background(), "auth-schema", authV1, "tester")
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestRegisterStorageErrors(t *testing.T) {
	boom := errors.New("disk on fire")

	t.Run("read", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := NewMockStore(ctrl)
		metrics := NewMockMetrics(ctrl)

		store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return(nil, boom)
		metrics.EXPECT().RecordRegistrationFailure("read")

		_, err := NewAllocator(store, fastConfig(), nil).WithMetrics(metrics).
			Register(context.Background(), "auth-schema", authV1, "tester")
		assert.ErrorIs(t, err, ErrStorageRead)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("write", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := NewMockStore(ctrl)
		metrics := NewMockMetrics(ctrl)

		store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return(nil, nil)
		store.EXPECT().AppendVersionAtomic(gomock.Any(), gomock.Any()).Return(SchemaVersion{}, boom)
		metrics.EXPECT().RecordRegistrationFailure("write")

		_, err := NewAllocator(store, fastConfig(), nil).WithMetrics(metrics).
			Register(context.Background(), "auth-schema", authV1, "tester")
		assert.ErrorIs(t, err, ErrStorageWrite)
		assert.NotErrorIs(t, err, ErrVersionConflict)
	})
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	a := NewAllocator(NewMemoryStore(), fastConfig(), nil)

	_, err := a.Register(context.Background(), "", authV1, "tester")
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = a.Register(context.Background(), "auth-schema", "", "tester")
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestRegisterIfChanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := NewAllocator(store, fastConfig(), nil)

	v1, created, err := a.RegisterIfChanged(ctx, "auth-schema", authV1, "tester")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, v1.Version)

	again, created, err := a.RegisterIfChanged(ctx, "auth-schema", authV1, "tester")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v1.ID, again.ID)

	v2, created, err := a.RegisterIfChanged(ctx, "auth-schema", authV2, "tester")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, v2.Version)
}

type staticResolver struct {
	id  int
	err error
}

func (r staticResolver) ResolveSchemaID(context.Context, string) (int, error) {
	return r.id, r.err
}

func TestRegisterSchemaID(t *testing.T) {
	ctx := context.Background()

	v, err := NewAllocator(NewMemoryStore(), fastConfig(), nil).
		WithSchemaIDResolver(staticResolver{id: 42}).
		Register(ctx, "auth-schema", authV1, "tester")
	require.NoError(t, err)
	require.NotNil(t, v.SchemaID)
	assert.Equal(t, 42, *v.SchemaID)

	v, err = NewAllocator(NewMemoryStore(), fastConfig(), nil).
		WithSchemaIDResolver(staticResolver{err: errors.New("registry down")}).
		Register(ctx, "auth-schema", authV1, "tester")
	require.NoError(t, err)
	assert.Nil(t, v.SchemaID)
}

// blockingResolver answers only when its context ends.
type blockingResolver struct{}

func (blockingResolver) ResolveSchemaID(ctx context.Context, _ string) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestRegisterSlowResolverIsBounded(t *testing.T) {
	cfg := fastConfig()
	cfg.StoreTimeout = 5 * time.Second
	cfg.ResolverTimeout = 20 * time.Millisecond

	start := time.Now()
	v, err := NewAllocator(NewMemoryStore(), cfg, nil).
		WithSchemaIDResolver(blockingResolver{}).
		Register(context.Background(), "auth-schema", authV1, "tester")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.Nil(t, v.SchemaID)
	assert.Less(t, elapsed, time.Second, "resolver wait must not reach the store timeout")
}

func TestResolverTimeoutDefault(t *testing.T) {
	cfg := Config{StoreTimeout: 5 * time.Second}.withDefaults()
	assert.Equal(t, DefaultResolverTimeout, cfg.ResolverTimeout)
	assert.Less(t, cfg.ResolverTimeout, cfg.StoreTimeout)
}

func TestRegisterCancellationIsScoped(t *testing.T) {
	store := NewMemoryStore()
	a := NewAllocator(store, fastConfig(), nil)

	// hold the subject so the next caller has to wait
	unlock, err := a.locks.lock(context.Background(), "auth-schema")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Register(ctx, "auth-schema", authV1, "tester")
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled registration did not return")
	}

	// other subjects are unaffected while auth-schema is held
	v, err := a.Register(context.Background(), "billing-schema", authV1, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)

	unlock()
	v, err = a.Register(context.Background(), "auth-schema", authV1, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	released int
	err      error
}

func (f *fakeLocker) Lock(_ context.Context, subject string) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.locked = append(f.locked, subject)
	f.mu.Unlock()
	return func(context.Context) error {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
		return nil
	}, nil
}

func TestRegisterUsesLocker(t *testing.T) {
	ctx := context.Background()

	locker := &fakeLocker{}
	_, err := NewAllocator(NewMemoryStore(), fastConfig(), nil).WithLocker(locker).
		Register(ctx, "auth-schema", authV1, "tester")
	require.NoError(t, err)
	assert.Equal(t, []string{"auth-schema"}, locker.locked)
	assert.Equal(t, 1, locker.released)

	failing := &fakeLocker{err: errors.New("lock timeout")}
	store := NewMemoryStore()
	_, err = NewAllocator(store, fastConfig(), nil).WithLocker(failing).
		Register(ctx, "auth-schema", authV1, "tester")
	require.Error(t, err)

	versions, err := store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	assert.Empty(t, versions)
}
