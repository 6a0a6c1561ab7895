package versioning

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
)

// DBProvider hands out the current connection. *postgres.Postgres implements it
// and swaps the connection transparently after a reconnect.
type DBProvider interface {
	DB() *gorm.DB
}

// GormStore persists versions in the schema_versions table. The unique index
// on (subject, version) turns a lost allocation race into ErrVersionConflict.
type GormStore struct {
	db       DBProvider
	observer observability.Observer
}

func NewGormStore(db DBProvider) *GormStore {
	return &GormStore{db: db}
}

// WithObserver reports every query to observer.
func (s *GormStore) WithObserver(observer observability.Observer) *GormStore {
	s.observer = observer
	return s
}

// Migrate creates the table and its indexes.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.DB().WithContext(ctx).AutoMigrate(&SchemaVersion{}); err != nil {
		return writeErr("migrate", postgres.TranslateError(err))
	}
	return nil
}

func (s *GormStore) ListVersions(ctx context.Context, subject string) ([]SchemaVersion, error) {
	start := time.Now()
	var versions []SchemaVersion
	err := s.db.DB().WithContext(ctx).
		Where("subject = ?", subject).
		Order("version ASC").
		Find(&versions).Error
	s.observe("list_versions", subject, start, err, int64(len(versions)))
	if err != nil {
		return nil, readErr("list versions", postgres.TranslateError(err))
	}
	return versions, nil
}

func (s *GormStore) AppendVersionAtomic(ctx context.Context, candidate SchemaVersion) (SchemaVersion, error) {
	if err := validateCandidate(candidate); err != nil {
		return SchemaVersion{}, err
	}
	candidate.ID = 0

	start := time.Now()
	err := s.db.DB().WithContext(ctx).Create(&candidate).Error
	s.observe("append_version", candidate.Subject, start, err, 1)
	if err != nil {
		err = postgres.TranslateError(err)
		if errors.Is(err, postgres.ErrDuplicateKey) {
			return SchemaVersion{}, ErrVersionConflict
		}
		return SchemaVersion{}, writeErr("append version", err)
	}
	return candidate, nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]SchemaVersion, error) {
	return s.find(ctx, "list_all", func(db *gorm.DB) *gorm.DB { return db })
}

func (s *GormStore) ListActive(ctx context.Context) ([]SchemaVersion, error) {
	return s.find(ctx, "list_active", func(db *gorm.DB) *gorm.DB { return db.Where("is_active = ?", true) })
}

// ListSubjects returns subjects in order of their first registration.
func (s *GormStore) ListSubjects(ctx context.Context) ([]string, error) {
	start := time.Now()
	var subjects []string
	err := s.db.DB().WithContext(ctx).
		Model(&SchemaVersion{}).
		Select("subject").
		Group("subject").
		Order("MIN(id) ASC").
		Pluck("subject", &subjects).Error
	s.observe("list_subjects", "", start, err, int64(len(subjects)))
	if err != nil {
		return nil, readErr("list subjects", postgres.TranslateError(err))
	}
	return subjects, nil
}

func (s *GormStore) GetVersion(ctx context.Context, subject string, version int) (SchemaVersion, error) {
	return s.first(ctx, "get_version", subject, func(db *gorm.DB) *gorm.DB {
		return db.Where("subject = ? AND version = ?", subject, version)
	})
}

func (s *GormStore) GetBySchemaID(ctx context.Context, schemaID int) (SchemaVersion, error) {
	return s.first(ctx, "get_by_schema_id", "", func(db *gorm.DB) *gorm.DB {
		return db.Where("schema_id = ?", schemaID).Order("id DESC")
	})
}

func (s *GormStore) find(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]SchemaVersion, error) {
	start := time.Now()
	var versions []SchemaVersion
	err := scope(s.db.DB().WithContext(ctx)).Order("id ASC").Find(&versions).Error
	s.observe(op, "", start, err, int64(len(versions)))
	if err != nil {
		return nil, readErr(op, postgres.TranslateError(err))
	}
	return versions, nil
}

func (s *GormStore) first(ctx context.Context, op, subject string, scope func(*gorm.DB) *gorm.DB) (SchemaVersion, error) {
	start := time.Now()
	var v SchemaVersion
	err := scope(s.db.DB().WithContext(ctx)).Take(&v).Error
	s.observe(op, subject, start, err, 1)
	if err != nil {
		err = postgres.TranslateError(err)
		if errors.Is(err, postgres.ErrRecordNotFound) {
			return SchemaVersion{}, ErrNotFound
		}
		return SchemaVersion{}, readErr(op, err)
	}
	return v, nil
}

func (s *GormStore) observe(op, subject string, start time.Time, err error, size int64) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component:   "postgres",
		Operation:   op,
		Resource:    SchemaVersion{}.TableName(),
		SubResource: subject,
		Duration:    time.Since(start),
		Error:       err,
		Size:        size,
	})
}
