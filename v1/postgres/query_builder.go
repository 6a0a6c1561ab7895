package postgres

import (
	"context"

	"gorm.io/gorm"
)

// Query starts a query against the current connection.
// The connection is captured once, so a reconnect in the middle of the
// chain does not split the query across two pools.
//
// Parameters:
//   - ctx: Context for the database operation
//
// Returns a QueryBuilder instance that can be used to construct the query.
//
// Example:
//
//	rows := []pipeline.MessageMetadata{}
//	err := pg.Query(ctx).
//	    Where("topic = ?", "raw-data").
//	    Order("created_at DESC").
//	    Limit(10).
//	    Find(&rows)
func (p *Postgres) Query(ctx context.Context) *QueryBuilder {
	return NewQuery(ctx, p.DB())
}

// NewQuery starts a query on db. Stores that only hold a gorm handle use it
// instead of Postgres.Query.
func NewQuery(ctx context.Context, db *gorm.DB) *QueryBuilder {
	return &QueryBuilder{db: db.WithContext(ctx)}
}

// QueryBuilder chains GORM query modifiers. Terminal methods (Find, First,
// Scan, Count) execute the query and translate errors.
type QueryBuilder struct {
	db *gorm.DB
}

// Model sets the table from a model value.
//
// Example:
//
//	qb.Model(&MessageMetadata{}).Count(&n)
func (qb *QueryBuilder) Model(value interface{}) *QueryBuilder {
	qb.db = qb.db.Model(value)
	return qb
}

// Select specifies the fields or expressions to select.
//
// Parameters:
//   - query: Field selection string or raw SQL expression
//   - args: Arguments for any placeholders in the query
//
// Example:
//
//	qb.Select("COUNT(*) AS total, AVG(processing_time_ms) AS avg")
func (qb *QueryBuilder) Select(query interface{}, args ...interface{}) *QueryBuilder {
	qb.db = qb.db.Select(query, args...)
	return qb
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
//
// Parameters:
//   - query: Condition string with optional placeholders or a map of conditions
//   - args: Arguments for any placeholders in the query
//
// Example:
//
//	qb.Where("created_at >= ?", from)
func (qb *QueryBuilder) Where(query interface{}, args ...interface{}) *QueryBuilder {
	qb.db = qb.db.Where(query, args...)
	return qb
}

// WhereIf adds the condition only when ok is true, so optional filters
// stay in one chain.
//
// Example:
//
//	qb.WhereIf(topic != "", "topic = ?", topic)
func (qb *QueryBuilder) WhereIf(ok bool, query interface{}, args ...interface{}) *QueryBuilder {
	if ok {
		qb.db = qb.db.Where(query, args...)
	}
	return qb
}

// Or adds an OR condition to the previous conditions.
func (qb *QueryBuilder) Or(query interface{}, args ...interface{}) *QueryBuilder {
	qb.db = qb.db.Or(query, args...)
	return qb
}

// Order adds an ORDER BY clause.
//
// Example:
//
//	qb.Order("created_at DESC, id DESC")
func (qb *QueryBuilder) Order(value interface{}) *QueryBuilder {
	qb.db = qb.db.Order(value)
	return qb
}

// Limit caps the number of rows returned.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	qb.db = qb.db.Limit(limit)
	return qb
}

// Offset skips the first offset rows.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	qb.db = qb.db.Offset(offset)
	return qb
}

// Find runs the query and stores all matching rows in dest.
//
// Parameters:
//   - dest: Pointer to a slice where the results will be stored
//
// Returns a translated error, nil on success.
func (qb *QueryBuilder) Find(dest interface{}) error {
	return TranslateError(qb.db.Find(dest).Error)
}

// First stores the first matching row in dest. ErrRecordNotFound is
// returned when nothing matches.
func (qb *QueryBuilder) First(dest interface{}) error {
	return TranslateError(qb.db.First(dest).Error)
}

// Scan stores the selected columns in dest, typically a struct with
// fields named after the selected aliases.
func (qb *QueryBuilder) Scan(dest interface{}) error {
	return TranslateError(qb.db.Scan(dest).Error)
}

// Count stores the number of matching rows in count.
func (qb *QueryBuilder) Count(count *int64) error {
	return TranslateError(qb.db.Count(count).Error)
}

// ToSQL renders the statement Find would run, with arguments inlined.
// Nothing is executed.
//
// Example:
//
//	log.Printf("DEBUG: %s", qb.ToSQL(&rows))
func (qb *QueryBuilder) ToSQL(dest interface{}) string {
	return qb.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Find(dest)
	})
}
