package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Transaction runs fn inside a database transaction. A non-nil error from fn
// rolls back; the returned error is translated.
func (p *Postgres) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := p.DB().WithContext(ctx).Transaction(fn)
	if err != nil {
		return TranslateError(err)
	}
	return nil
}

// AutoMigrate creates or updates tables and indexes for the given models.
func (p *Postgres) AutoMigrate(ctx context.Context, models ...interface{}) error {
	if err := p.DB().WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", TranslateError(err))
	}
	return nil
}
