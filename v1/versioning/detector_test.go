package versioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	authV1 = `{"service":"string","level":"string","code":"integer"}`
	authV2 = `{"service":"string","level":"string","code":"double"}`
)

func seed(t *testing.T, store *MemoryStore, subject string, definitions ...string) {
	t.Helper()
	for i, def := range definitions {
		_, err := store.AppendVersionAtomic(context.Background(), SchemaVersion{
			Subject:           subject,
			Version:           i + 1,
			Definition:        def,
			CompatibilityMode: CompatibilityBackward,
			IsActive:          true,
			RegisteredAt:      time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "auth-schema", authV1)
	seed(t, store, "billing-schema", `{"a":"string"}`, `{"a":"long"}`)

	tests := []struct {
		name          string
		subject       string
		candidate     string
		want          Status
		latestVersion int
	}{
		{name: "no prior", subject: "unknown-schema", candidate: authV1, want: StatusNoPrior},
		{name: "match", subject: "auth-schema", candidate: authV1, want: StatusMatch, latestVersion: 1},
		{name: "drift", subject: "auth-schema", candidate: authV2, want: StatusDrift, latestVersion: 1},
		{name: "compared with the highest version", subject: "billing-schema", candidate: `{"a":"string"}`, want: StatusDrift, latestVersion: 2},
		{name: "empty schema drifts from a real one", subject: "auth-schema", candidate: "{}", want: StatusDrift, latestVersion: 1},
	}

	d := NewDetector(store, time.Second, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(ctx, tt.subject, tt.candidate)
			assert.Equal(t, tt.want, got.Status)
			assert.NoError(t, got.Err)
			if tt.latestVersion == 0 {
				assert.Nil(t, got.Latest)
				return
			}
			require.NotNil(t, got.Latest)
			assert.Equal(t, tt.latestVersion, got.Latest.Version)
		})
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "auth-schema", authV1)
	d := NewDetector(store, time.Second, nil)

	first := d.Detect(ctx, "auth-schema", authV1)
	second := d.Detect(ctx, "auth-schema", authV1)

	assert.Equal(t, StatusMatch, first.Status)
	assert.Equal(t, StatusMatch, second.Status)

	versions, err := store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestDetectStorageFailureFailsClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	metrics := NewMockMetrics(ctrl)
	reporter := NewMockErrorReporter(ctrl)
	log := NewMockLogger(ctrl)

	boom := errors.New("connection refused")
	store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return(nil, boom)
	metrics.EXPECT().RecordDriftCheck("error")
	log.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())
	reporter.EXPECT().ReportError(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev ErrorEvent) {
		assert.Equal(t, "check_drift", ev.Operation)
		assert.Equal(t, "auth-schema", ev.Subject)
		assert.ErrorIs(t, ev.Err, ErrStorageRead)
		assert.False(t, ev.At.IsZero())
	})

	d := NewDetector(store, time.Second, log).WithMetrics(metrics).WithReporter(reporter)
	got := d.Detect(context.Background(), "auth-schema", authV1)

	assert.Equal(t, StatusMatch, got.Status)
	assert.Nil(t, got.Latest)
	assert.ErrorIs(t, got.Err, ErrStorageRead)
	assert.ErrorIs(t, got.Err, boom)
}

// blockingStore blocks every call until the context ends.
type blockingStore struct{}

func (blockingStore) ListVersions(ctx context.Context, _ string) ([]SchemaVersion, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) AppendVersionAtomic(ctx context.Context, _ SchemaVersion) (SchemaVersion, error) {
	<-ctx.Done()
	return SchemaVersion{}, ctx.Err()
}

func TestDetectTimeoutIsMatch(t *testing.T) {
	d := NewDetector(blockingStore{}, 20*time.Millisecond, nil)

	start := time.Now()
	got := d.Detect(context.Background(), "auth-schema", authV1)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusMatch, got.Status)
	assert.ErrorIs(t, got.Err, context.DeadlineExceeded)
}

func TestDetectMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := NewMockMetrics(ctrl)

	store := NewMemoryStore()
	seed(t, store, "auth-schema", authV1)

	gomock.InOrder(
		metrics.EXPECT().RecordDriftCheck("no_prior"),
		metrics.EXPECT().RecordDriftCheck("match"),
		metrics.EXPECT().RecordDriftCheck("drift"),
	)

	d := NewDetector(store, time.Second, nil).WithMetrics(metrics)
	d.Detect(context.Background(), "new-schema", authV1)
	d.Detect(context.Background(), "auth-schema", authV1)
	d.Detect(context.Background(), "auth-schema", authV2)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "NO_PRIOR", StatusNoPrior.String())
	assert.Equal(t, "MATCH", StatusMatch.String())
	assert.Equal(t, "DRIFT", StatusDrift.String())
	assert.Equal(t, "UNKNOWN", Status(0).String())

	text, err := StatusDrift.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "DRIFT", string(text))
}
