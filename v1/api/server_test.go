package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/pipeline"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

type fakeProducer struct {
	topic string
	key   string
	body  []byte
	err   error
}

func (f *fakeProducer) PublishTo(_ context.Context, topic, key string, body []byte, _ map[string]string) error {
	f.topic, f.key, f.body = topic, key, body
	return f.err
}

type staticLister struct {
	subjects []string
	err      error
}

func (s staticLister) ListSubjects(context.Context) ([]string, error) {
	return s.subjects, s.err
}

type testEnv struct {
	server   *Server
	store    *versioning.MemoryStore
	registry *versioning.Registry
	metadata *pipeline.MemoryMetadataStore
	producer *fakeProducer
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    versioning.NewMemoryStore(),
		metadata: pipeline.NewMemoryMetadataStore(0),
		producer: &fakeProducer{},
	}
	env.registry = versioning.NewRegistry(env.store, versioning.Config{}, nil).
		WithSubjectLister(staticLister{subjects: []string{"orders-value", "auth-value"}})
	env.server = NewServer(Config{Application: "schemawatch-test"}, Deps{
		Registry: env.registry,
		Versions: env.store,
		Metadata: env.metadata,
		Producer: env.producer,
		Features: Features{Kafka: true},
	}, nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "schemawatch-test", body["application"])
	assert.NotEmpty(t, body["timestamp"])
	features := body["features"].(map[string]interface{})
	assert.Equal(t, true, features["kafka"])
	assert.Equal(t, false, features["postgresql"])
}

func TestProduce(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/produce?key=abc", `{"service":"auth"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, DefaultProduceTopic, body["topic"])
	assert.Equal(t, "abc", env.producer.key)
	assert.Equal(t, `{"service":"auth"}`, string(env.producer.body))

	rec = env.do(t, http.MethodPost, "/produce", `{"service":"auth"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, env.producer.key, "a key is generated")

	rec = env.do(t, http.MethodPost, "/produce", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.producer.err = errors.New("broker down")
	rec = env.do(t, http.MethodPost, "/produce", `{}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "error", decode[map[string]string](t, rec)["status"])
}

func TestProduceWithoutProducer(t *testing.T) {
	env := newEnv(t)
	env.server.deps.Producer = nil
	rec := env.do(t, http.MethodPost, "/produce", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProduceBodyLimit(t *testing.T) {
	env := newEnv(t)
	env.server = NewServer(Config{MaxBodyBytes: 8}, env.server.deps, nil)
	rec := env.do(t, http.MethodPost, "/produce", `{"service":"auth"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMessages(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, m := range []pipeline.MessageMetadata{
		{Topic: "raw-data", ServiceName: "auth", LogLevel: "INFO", ProcessingTimeMs: 4},
		{Topic: "raw-data", ServiceName: "auth", LogLevel: "ERROR", ProcessingTimeMs: 6},
		{Topic: "other", ServiceName: "billing", LogLevel: "INFO", ProcessingTimeMs: 1},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, env.metadata.Save(ctx, &m))
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/messages", 3},
		{"/api/messages?limit=2", 2},
		{"/api/messages/topic/raw-data", 2},
		{"/api/messages/service/billing", 1},
		{"/api/messages/level/INFO", 2},
		{"/api/messages?from=2024-01-01T00:30:00Z", 2},
		{"/api/messages?to=2024-01-01T00:30:00Z", 1},
		{"/api/messages/topic/none", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decode[[]pipeline.MessageMetadata](t, rec), tt.want)
		})
	}

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/messages?limit=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/messages?from=yesterday", "").Code)

	rec := env.do(t, http.MethodGet, "/api/stats/topic/raw-data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "raw-data", stats["topic"])
	assert.Equal(t, float64(2), stats["total_messages"])
	assert.Equal(t, float64(5), stats["avg_processing_time_ms"])
}

func TestSchemaEndpoints(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.registry.RegisterVersion(ctx, "auth-schema", `{"code":"integer"}`, "test")
	require.NoError(t, err)
	_, err = env.registry.RegisterVersion(ctx, "auth-schema", `{"code":"double"}`, "test")
	require.NoError(t, err)
	_, err = env.registry.RegisterVersion(ctx, "billing-schema", `{"amount":"double"}`, "test")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/schemas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]versioning.SchemaVersion](t, rec), 3)

	rec = env.do(t, http.MethodGet, "/api/schemas/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]versioning.SchemaVersion](t, rec), 3)

	rec = env.do(t, http.MethodGet, "/api/schemas/subject/auth-schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[[]versioning.SchemaVersion](t, rec)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	rec = env.do(t, http.MethodGet, "/api/schemas/subject/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/schemas/subject/auth-schema/versions/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"code":"double"}`, decode[versioning.SchemaVersion](t, rec).Definition)

	rec = env.do(t, http.MethodGet, "/api/schemas/subject/auth-schema/versions/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/schemas/id/77", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInfer(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/schemas/infer", `{"user_id":123,"ratio":0.5,"ok":true,"tags":[],"name":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[inferResponse](t, rec)
	assert.True(t, res.Valid)
	assert.Equal(t, `{"user_id":"integer","ratio":"double","ok":"boolean","tags":"array","name":"string"}`, res.Schema)
	require.Len(t, res.Fields, 5)
	assert.Equal(t, "user_id", res.Fields[0].Name)

	rec = env.do(t, http.MethodPost, "/api/schemas/infer", `{"user_id": 12`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[inferResponse](t, rec)
	assert.False(t, res.Valid)
	assert.Equal(t, "{}", res.Schema)
	assert.NotEmpty(t, res.Error)
}

func TestCheckNeverRegisters(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/schemas/subject/auth-schema/check", `{"code":200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[checkResponse](t, rec)
	assert.Equal(t, "NO_PRIOR", res.Status)

	versions, err := env.store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	assert.Empty(t, versions)

	_, err = env.registry.RegisterVersion(ctx, "auth-schema", `{"code":"integer"}`, "test")
	require.NoError(t, err)

	res = decode[checkResponse](t, env.do(t, http.MethodPost, "/api/schemas/subject/auth-schema/check", `{"code":201}`))
	assert.Equal(t, "MATCH", res.Status)
	assert.Equal(t, 1, res.LatestVersion)
	assert.Empty(t, res.Changes)

	res = decode[checkResponse](t, env.do(t, http.MethodPost, "/api/schemas/subject/auth-schema/check", `{"code":2.5}`))
	assert.Equal(t, "DRIFT", res.Status)
	assert.NotEmpty(t, res.Changes)

	versions, err = env.store.ListVersions(ctx, "auth-schema")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestCheckStorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := versioning.NewMockStore(ctrl)
	store.EXPECT().ListVersions(gomock.Any(), "auth-schema").Return(nil, errors.New("connection reset"))

	s := NewServer(Config{}, Deps{Registry: versioning.NewRegistry(store, versioning.Config{}, nil)}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/schemas/subject/auth-schema/check", strings.NewReader(`{"a":1}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegistrySubjects(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/api/schemas/registry/subjects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"orders-value", "auth-value"}, decode[[]string](t, rec))

	env.registry.WithSubjectLister(staticLister{err: errors.New("unreachable")})
	rec = env.do(t, http.MethodGet, "/api/schemas/registry/subjects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRoutingErrors(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rec).Status)

	rec = env.do(t, http.MethodDelete, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFXModule(t *testing.T) {
	store := versioning.NewMemoryStore()
	var server *Server

	app := fxtest.New(t,
		fx.Supply(Config{Address: "127.0.0.1:0"}, Features{Postgres: true}),
		fx.Provide(
			logger.NewNop,
			func() versioning.ReadStore { return store },
			func() pipeline.MetadataStore { return pipeline.NewMemoryMetadataStore(0) },
			func(s versioning.ReadStore) *versioning.Registry {
				return versioning.NewRegistry(s, versioning.Config{}, nil)
			},
		),
		FXModule,
		fx.Populate(&server),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, server)
	assert.Nil(t, server.deps.Producer)
	assert.True(t, server.deps.Features.Postgres)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
