package postgres

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Postgres owns a self-healing GORM connection.
type Postgres struct {
	cfg    Config
	client atomic.Pointer[gorm.DB]

	shutdownSignal  chan struct{}
	retryChanSignal chan error
	shutdownOnce    sync.Once
}

// NewPostgres connects and returns the wrapper. Background monitoring starts
// with Run.
//
// Parameters:
//   - cfg: Connection and pool settings; zero pool sizes default to 50 open
//     and 25 idle connections with a one minute lifetime
//
// Returns the connected wrapper, or an error when the first connection fails.
//
// Example:
//
//	pg, err := postgres.NewPostgres(cfg)
//	if err != nil {
//		return err
//	}
//	go pg.Run(ctx)
//	defer pg.Close()
func NewPostgres(cfg Config) (*Postgres, error) {
	conn, err := connectToPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("error in connecting to postgres: %w", err)
	}

	pg := &Postgres{
		cfg:             cfg,
		shutdownSignal:  make(chan struct{}),
		retryChanSignal: make(chan error, 1),
	}
	pg.client.Store(conn)
	return pg, nil
}

// NewFromDB wraps an already opened connection. Mostly useful in tests.
// It has no Config to reconnect with, so do not call Run on it.
//
// Example:
//
//	db, _ := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{DryRun: true})
//	store := pipeline.NewGormMetadataStore(postgres.NewFromDB(db))
func NewFromDB(db *gorm.DB) *Postgres {
	pg := &Postgres{
		shutdownSignal:  make(chan struct{}),
		retryChanSignal: make(chan error, 1),
	}
	pg.client.Store(db)
	return pg
}

// DB returns the current connection.
func (p *Postgres) DB() *gorm.DB {
	return p.client.Load()
}

func connectToPostgres(cfg Config) (*gorm.DB, error) {
	database, err := gorm.Open(postgres.Open(cfg.Connection.dsn()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL database instance: %w", err)
	}

	maxOpen := cfg.ConnectionDetails.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 50
	}
	maxIdle := cfg.ConnectionDetails.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 25
	}
	maxLifetime := cfg.ConnectionDetails.ConnMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	log.Println("INFO: Successfully connected to PostgreSQL database")
	return database, nil
}

// Run monitors the connection and reconnects on failure until ctx is done or
// Close is called.
func (p *Postgres) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.monitorConnection(ctx)
	}()
	go func() {
		defer wg.Done()
		p.retryConnection(ctx)
	}()
	wg.Wait()
}

func (p *Postgres) retryConnection(ctx context.Context) {
	for {
		select {
		case <-p.shutdownSignal:
			log.Println("INFO: Stopping reconnect loop due to shutdown signal")
			return
		case <-ctx.Done():
			return
		case <-p.retryChanSignal:
		}

		for {
			newConn, err := connectToPostgres(p.cfg)
			if err == nil {
				old := p.client.Swap(newConn)
				closeDB(old)
				log.Println("INFO: Successfully reconnected to PostgreSQL database")
				break
			}
			log.Printf("ERROR: PostgreSQL reconnection failed: %v", err)

			select {
			case <-p.shutdownSignal:
				return
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (p *Postgres) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdownSignal:
			log.Println("INFO: Stopping connection monitor due to shutdown signal")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.HealthCheck(ctx); err != nil {
				select {
				case p.retryChanSignal <- err:
				default:
				}
			}
		}
	}
}

// HealthCheck pings the database with a five second timeout.
//
// Returns ErrConnectionFailed when no connection is held, or the ping error.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	db := p.DB()
	if db == nil {
		return fmt.Errorf("%w: client is not initialized", ErrConnectionFailed)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance during health check: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed during health check: %w", err)
	}
	return nil
}

// Close stops background loops and closes the pool.
func (p *Postgres) Close() error {
	p.shutdownOnce.Do(func() {
		close(p.shutdownSignal)
	})

	db := p.DB()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
