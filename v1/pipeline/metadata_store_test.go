package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
)

func seedMetadata(t *testing.T, store MetadataStore) time.Time {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []MessageMetadata{
		{Topic: "raw-data", ServiceName: "auth", LogLevel: "INFO", ProcessingTimeMs: 10},
		{Topic: "raw-data", ServiceName: "auth", LogLevel: "ERROR", ProcessingTimeMs: 20},
		{Topic: "raw-data", ServiceName: "billing", LogLevel: "INFO", ProcessingTimeMs: 30},
		{Topic: "audit", ServiceName: "billing", LogLevel: "WARN", ProcessingTimeMs: 5},
	}
	for i := range rows {
		rows[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(context.Background(), &rows[i]))
		assert.NotZero(t, rows[i].ID)
	}
	return base
}

func exerciseMetadataStore(t *testing.T, store MetadataStore) {
	ctx := context.Background()
	base := seedMetadata(t, store)

	all, err := store.Find(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "audit", all[0].Topic, "newest first")

	byTopic, err := store.Find(ctx, Query{Topic: "raw-data"})
	require.NoError(t, err)
	assert.Len(t, byTopic, 3)

	byService, err := store.Find(ctx, Query{Service: "billing"})
	require.NoError(t, err)
	assert.Len(t, byService, 2)

	byLevel, err := store.Find(ctx, Query{Level: "INFO"})
	require.NoError(t, err)
	assert.Len(t, byLevel, 2)

	window, err := store.Find(ctx, Query{From: base.Add(time.Minute), To: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	limited, err := store.Find(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	stats, err := store.TopicStats(ctx, "raw-data")
	require.NoError(t, err)
	assert.Equal(t, TopicStats{Topic: "raw-data", TotalMessages: 3, AvgProcessingTimeMs: 20}, stats)

	empty, err := store.TopicStats(ctx, "nothing")
	require.NoError(t, err)
	assert.Equal(t, TopicStats{Topic: "nothing"}, empty)
}

func TestMemoryMetadataStore(t *testing.T) {
	exerciseMetadataStore(t, NewMemoryMetadataStore(0))
}

func TestMemoryMetadataStoreCapacity(t *testing.T) {
	store := NewMemoryMetadataStore(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(context.Background(), &MessageMetadata{Topic: "t", CreatedAt: time.Now()}))
	}

	rows, err := store.Find(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint(5), rows[0].ID)
	assert.Equal(t, uint(4), rows[1].ID)
}

func TestQueryLimit(t *testing.T) {
	assert.Equal(t, DefaultQueryLimit, Query{}.limit())
	assert.Equal(t, 7, Query{Limit: 7}.limit())
	assert.Equal(t, MaxQueryLimit, Query{Limit: MaxQueryLimit + 1}.limit())
}

func TestGormMetadataStoreFindQuery(t *testing.T) {
	db, err := gorm.Open(gormpostgres.Open("host=localhost user=test dbname=test sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	store := NewGormMetadataStore(postgres.NewFromDB(db))

	tests := []struct {
		name    string
		query   Query
		want    []string
		notWant []string
	}{
		{
			name:    "no filters",
			query:   Query{},
			want:    []string{`FROM "message_metadata"`, "ORDER BY created_at DESC, id DESC", "LIMIT 100"},
			notWant: []string{"WHERE"},
		},
		{
			name:    "topic and level",
			query:   Query{Topic: "raw-data", Level: "INFO", Limit: 5},
			want:    []string{"WHERE topic = 'raw-data' AND log_level = 'INFO'", "LIMIT 5"},
			notWant: []string{"service_name"},
		},
		{
			name:  "time window and capped limit",
			query: Query{Service: "auth", From: time.Unix(0, 0), To: time.Unix(60, 0), Limit: MaxQueryLimit * 2},
			want:  []string{"service_name = 'auth'", "created_at >=", "created_at <=", "LIMIT 1000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []MessageMetadata
			sql := store.findQuery(context.Background(), tt.query).ToSQL(&rows)
			for _, s := range tt.want {
				assert.Contains(t, sql, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, sql, s)
			}
		})
	}

	rows, err := store.Find(context.Background(), Query{Topic: "raw-data"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
