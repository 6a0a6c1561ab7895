package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
)

var ErrMetadata = errors.New("pipeline: metadata store failed")

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// Query filters metadata rows. Zero fields do not filter.
type Query struct {
	Topic   string
	Service string
	Level   string
	From    time.Time
	To      time.Time

	// Limit caps the result; 0 means DefaultQueryLimit.
	Limit int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultQueryLimit
	case q.Limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return q.Limit
	}
}

func (q Query) matches(m MessageMetadata) bool {
	switch {
	case q.Topic != "" && m.Topic != q.Topic:
		return false
	case q.Service != "" && m.ServiceName != q.Service:
		return false
	case q.Level != "" && m.LogLevel != q.Level:
		return false
	case !q.From.IsZero() && m.CreatedAt.Before(q.From):
		return false
	case !q.To.IsZero() && m.CreatedAt.After(q.To):
		return false
	}
	return true
}

// MetadataStore persists and queries message metadata.
type MetadataStore interface {
	Save(ctx context.Context, m *MessageMetadata) error

	// Find returns matching rows, newest first.
	Find(ctx context.Context, q Query) ([]MessageMetadata, error)

	TopicStats(ctx context.Context, topic string) (TopicStats, error)
}

// GormMetadataStore keeps metadata in the message_metadata table.
type GormMetadataStore struct {
	db       interface{ DB() *gorm.DB }
	observer observability.Observer
}

func NewGormMetadataStore(db interface{ DB() *gorm.DB }) *GormMetadataStore {
	return &GormMetadataStore{db: db}
}

func (s *GormMetadataStore) WithObserver(observer observability.Observer) *GormMetadataStore {
	s.observer = observer
	return s
}

func (s *GormMetadataStore) Migrate(ctx context.Context) error {
	if err := s.db.DB().WithContext(ctx).AutoMigrate(&MessageMetadata{}); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrMetadata, postgres.TranslateError(err))
	}
	return nil
}

func (s *GormMetadataStore) Save(ctx context.Context, m *MessageMetadata) error {
	start := time.Now()
	m.ID = 0
	err := s.db.DB().WithContext(ctx).Create(m).Error
	s.observe("save_metadata", m.Topic, start, err, 1)
	if err != nil {
		return fmt.Errorf("%w: save: %w", ErrMetadata, postgres.TranslateError(err))
	}
	return nil
}

func (s *GormMetadataStore) Find(ctx context.Context, q Query) ([]MessageMetadata, error) {
	start := time.Now()
	var rows []MessageMetadata
	err := s.findQuery(ctx, q).Find(&rows)
	s.observe("find_metadata", q.Topic, start, err, int64(len(rows)))
	if err != nil {
		return nil, fmt.Errorf("%w: find: %w", ErrMetadata, err)
	}
	return rows, nil
}

func (s *GormMetadataStore) findQuery(ctx context.Context, q Query) *postgres.QueryBuilder {
	return postgres.NewQuery(ctx, s.db.DB()).
		WhereIf(q.Topic != "", "topic = ?", q.Topic).
		WhereIf(q.Service != "", "service_name = ?", q.Service).
		WhereIf(q.Level != "", "log_level = ?", q.Level).
		WhereIf(!q.From.IsZero(), "created_at >= ?", q.From).
		WhereIf(!q.To.IsZero(), "created_at <= ?", q.To).
		Order("created_at DESC, id DESC").
		Limit(q.limit())
}

func (s *GormMetadataStore) TopicStats(ctx context.Context, topic string) (TopicStats, error) {
	start := time.Now()
	var row struct {
		Total int64
		Avg   *float64
	}
	err := postgres.NewQuery(ctx, s.db.DB()).
		Model(&MessageMetadata{}).
		Select("COUNT(*) AS total, AVG(processing_time_ms) AS avg").
		Where("topic = ?", topic).
		Scan(&row)
	s.observe("topic_stats", topic, start, err, 1)
	if err != nil {
		return TopicStats{}, fmt.Errorf("%w: stats: %w", ErrMetadata, err)
	}

	stats := TopicStats{Topic: topic, TotalMessages: row.Total}
	if row.Avg != nil {
		stats.AvgProcessingTimeMs = *row.Avg
	}
	return stats, nil
}

func (s *GormMetadataStore) observe(op, topic string, start time.Time, err error, size int64) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component:   "postgres",
		Operation:   op,
		Resource:    MessageMetadata{}.TableName(),
		SubResource: topic,
		Duration:    time.Since(start),
		Error:       err,
		Size:        size,
	})
}

// MemoryMetadataStore keeps the most recent rows in memory.
type MemoryMetadataStore struct {
	mu       sync.RWMutex
	rows     []MessageMetadata
	nextID   uint
	capacity int
}

// NewMemoryMetadataStore keeps at most capacity rows; 0 means unbounded.
func NewMemoryMetadataStore(capacity int) *MemoryMetadataStore {
	return &MemoryMetadataStore{capacity: capacity}
}

func (s *MemoryMetadataStore) Save(_ context.Context, m *MessageMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m.ID = s.nextID
	s.rows = append(s.rows, *m)
	if s.capacity > 0 && len(s.rows) > s.capacity {
		s.rows = append([]MessageMetadata(nil), s.rows[len(s.rows)-s.capacity:]...)
	}
	return nil
}

func (s *MemoryMetadataStore) Find(ctx context.Context, q Query) ([]MessageMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]MessageMetadata, 0)
	for _, m := range s.rows {
		if q.matches(m) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

func (s *MemoryMetadataStore) TopicStats(ctx context.Context, topic string) (TopicStats, error) {
	if err := ctx.Err(); err != nil {
		return TopicStats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := TopicStats{Topic: topic}
	var sum int64
	for _, m := range s.rows {
		if m.Topic == topic {
			stats.TotalMessages++
			sum += m.ProcessingTimeMs
		}
	}
	if stats.TotalMessages > 0 {
		stats.AvgProcessingTimeMs = float64(sum) / float64(stats.TotalMessages)
	}
	return stats, nil
}
