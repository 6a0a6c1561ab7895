package versioning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/schemawatch/v1/schema"
)

func TestAuthSchemaLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryStore(), Config{FirstSighting: FirstSightingIgnore}, nil)

	first := []byte(`{"service":"auth","level":"INFO","code":200}`)
	s1 := reg.DeriveSchema(first)
	assert.Equal(t, authV1, s1)

	d := reg.CheckDrift(ctx, "auth-schema", s1)
	assert.Equal(t, StatusNoPrior, d.Status)

	v1, err := reg.RegisterVersion(ctx, "auth-schema", s1, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	second := []byte(`{"service":"auth","level":"INFO","code":200.5}`)
	s2 := reg.DeriveSchema(second)
	assert.Equal(t, authV2, s2)

	d = reg.CheckDrift(ctx, "auth-schema", s2)
	assert.Equal(t, StatusDrift, d.Status)
	require.NotNil(t, d.Latest)
	assert.Equal(t, 1, d.Latest.Version)

	v2, err := reg.RegisterVersion(ctx, "auth-schema", s2, "tester")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	// the unchanged record keeps matching
	for i := 0; i < 2; i++ {
		assert.Equal(t, StatusMatch, reg.CheckDrift(ctx, "auth-schema", reg.DeriveSchema(second)).Status)
	}
}

func TestRegisterVersionDefaultsRegistrant(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), Config{}, nil)
	v, err := reg.RegisterVersion(context.Background(), "auth-schema", authV1, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRegisteredBy, v.RegisteredBy)
}

func TestObserveFirstSighting(t *testing.T) {
	record := []byte(`{"service":"auth","level":"INFO","code":200}`)

	t.Run("register", func(t *testing.T) {
		store := NewMemoryStore()
		reg := NewRegistry(store, Config{}, nil)

		out := reg.Observe(context.Background(), "auth-schema", record, "")
		assert.Equal(t, StatusNoPrior, out.Detection.Status)
		require.NotNil(t, out.Registered)
		assert.Equal(t, 1, out.Registered.Version)
		assert.Equal(t, out.Registered, out.Current)
		assert.Equal(t, DefaultRegisteredBy, out.Registered.RegisteredBy)
		assert.Equal(t, authV1, out.Schema)
		assert.Equal(t, []string{"service", "level", "code"}, out.Fields.Names())

		out = reg.Observe(context.Background(), "auth-schema", record, "")
		assert.Equal(t, StatusMatch, out.Detection.Status)
		assert.Nil(t, out.Registered)
		require.NotNil(t, out.Current)
		assert.Equal(t, 1, out.Current.Version)
	})

	t.Run("ignore", func(t *testing.T) {
		store := NewMemoryStore()
		reg := NewRegistry(store, Config{FirstSighting: FirstSightingIgnore}, nil)

		out := reg.Observe(context.Background(), "auth-schema", record, "")
		assert.Equal(t, StatusNoPrior, out.Detection.Status)
		assert.Nil(t, out.Registered)
		assert.Nil(t, out.Current)

		versions, err := store.ListVersions(context.Background(), "auth-schema")
		require.NoError(t, err)
		assert.Empty(t, versions)
	})
}

func TestObserveDrift(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "auth-schema", authV1)
	reg := NewRegistry(store, Config{}, nil)

	out := reg.Observe(ctx, "auth-schema", []byte(`{"service":"auth","level":"INFO","code":200.5}`), "tester")
	assert.Equal(t, StatusDrift, out.Detection.Status)
	require.NotNil(t, out.Registered)
	assert.Equal(t, 2, out.Registered.Version)
	assert.Equal(t, "tester", out.Registered.RegisteredBy)
	assert.NoError(t, out.Err)
}

func TestObserveDecodeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := NewMockMetrics(ctrl)
	metrics.EXPECT().RecordDecodeFailure()
	metrics.EXPECT().RecordDriftCheck(gomock.Any()).AnyTimes()

	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "auth-schema", authV1)
	reg := NewRegistry(store, Config{}, nil).WithMetrics(metrics)

	out := reg.Observe(ctx, "auth-schema", []byte(`{"service":`), "")
	assert.ErrorIs(t, out.DecodeErr, schema.ErrDecode)
	assert.Equal(t, schema.EmptySchema, out.Schema)
	assert.Nil(t, out.Registered)
	require.NotNil(t, out.Current)
	assert.Equal(t, 1, out.Current.Version)

	versions, err := store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestObserveEmptyObjectIsASchema(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), Config{}, nil)

	out := reg.Observe(context.Background(), "empty-schema", []byte(`{}`), "")
	assert.NoError(t, out.DecodeErr)
	require.NotNil(t, out.Registered)
	assert.Equal(t, schema.EmptySchema, out.Registered.Definition)
}

func TestObserveStorageFailureDoesNotRegister(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return(nil, errors.New("timeout"))

	out := NewRegistry(store, Config{}, nil).
		Observe(context.Background(), "auth-schema", []byte(`{"code":1}`), "")
	assert.Equal(t, StatusMatch, out.Detection.Status)
	assert.ErrorIs(t, out.Detection.Err, ErrStorageRead)
	assert.Nil(t, out.Registered)
	assert.Nil(t, out.Current)
}

func TestObserveRegistrationFailureKeepsBestKnown(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	reporter := NewMockErrorReporter(ctrl)

	latest := SchemaVersion{ID: 7, Subject: "auth-schema", Version: 3, Definition: authV1}
	store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return([]SchemaVersion{latest}, nil).Times(2)
	store.EXPECT().AppendVersionAtomic(gomock.Any(), gomock.Any()).Return(SchemaVersion{}, errors.New("read-only replica"))
	reporter.EXPECT().ReportError(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev ErrorEvent) {
		assert.Equal(t, "register_version", ev.Operation)
		assert.ErrorIs(t, ev.Err, ErrStorageWrite)
	})

	out := NewRegistry(store, Config{}, nil).WithReporter(reporter).
		Observe(context.Background(), "auth-schema", []byte(`{"service":"auth","level":"INFO","code":1.5}`), "")

	assert.Equal(t, StatusDrift, out.Detection.Status)
	assert.ErrorIs(t, out.Err, ErrStorageWrite)
	assert.Nil(t, out.Registered)
	require.NotNil(t, out.Current)
	assert.Equal(t, 3, out.Current.Version)
}

func TestObserveConcurrentSameShape(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(store, fastConfig(), nil)

	var wg sync.WaitGroup
	var registered atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := reg.Observe(ctx, "auth-schema", []byte(fmt.Sprintf(`{"service":"auth","n":%d}`, i)), "")
			assert.NoError(t, out.Err)
			if out.Registered != nil {
				registered.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), registered.Load())
	versions, err := store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestSubjects(t *testing.T) {
	ctx := context.Background()

	t.Run("without lister", func(t *testing.T) {
		reg := NewRegistry(NewMemoryStore(), Config{}, nil)
		assert.Equal(t, []string{}, reg.Subjects(ctx))
	})

	t.Run("lister result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lister := NewMockSubjectLister(ctrl)
		lister.EXPECT().ListSubjects(gomock.Any()).Return([]string{"auth-value", "billing-value"}, nil)

		reg := NewRegistry(NewMemoryStore(), Config{}, nil).WithSubjectLister(lister)
		assert.Equal(t, []string{"auth-value", "billing-value"}, reg.Subjects(ctx))
	})

	t.Run("lister failure is empty", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lister := NewMockSubjectLister(ctrl)
		log := NewMockLogger(ctrl)
		lister.EXPECT().ListSubjects(gomock.Any()).Return(nil, errors.New("connection refused"))
		log.EXPECT().ErrorWithContext(gomock.Any(), "external subject lookup failed", gomock.Any())

		reg := NewRegistry(NewMemoryStore(), Config{}, log).WithSubjectLister(lister)
		assert.Equal(t, []string{}, reg.Subjects(ctx))
	})

	t.Run("lookup does not block versioning", func(t *testing.T) {
		release := make(chan struct{})
		ctrl := gomock.NewController(t)
		lister := NewMockSubjectLister(ctrl)
		lister.EXPECT().ListSubjects(gomock.Any()).DoAndReturn(func(context.Context) ([]string, error) {
			<-release
			return []string{"auth-value"}, nil
		})

		reg := NewRegistry(NewMemoryStore(), Config{}, nil).WithSubjectLister(lister)
		done := make(chan []string)
		go func() { done <- reg.Subjects(ctx) }()

		out := reg.Observe(ctx, "auth-schema", []byte(`{"a":1}`), "")
		require.NotNil(t, out.Registered)

		close(release)
		select {
		case got := <-done:
			assert.Equal(t, []string{"auth-value"}, got)
		case <-time.After(time.Second):
			t.Fatal("subject lookup did not finish")
		}
	})
}
