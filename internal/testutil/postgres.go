// Package testutil starts throwaway infrastructure containers for integration tests.
// Every helper skips the calling test under -short.
package testutil

import (
	"database/sql"
	"fmt"
	"net"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
)

const (
	pgUser     = "testuser"
	pgPassword = "testpass"
	pgDB       = "testdb"
)

// StartPostgres runs postgres:15 and returns a config pointing at it.
func StartPostgres(t *testing.T) postgres.Config {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image: "postgres:15",
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "5432")

	if err := waitForPostgresReady(host, port, 30*time.Second); err != nil {
		t.Fatalf("postgres container not ready: %v", err)
	}

	return postgres.Config{
		Connection: postgres.Connection{
			Host:     host,
			Port:     port,
			User:     pgUser,
			Password: pgPassword,
			DbName:   pgDB,
			SSLMode:  "disable",
		},
	}
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// The ready log line appears once during initdb before the final restart, so
// ping until the server really accepts connections.
func waitForPostgresReady(host, port string, timeout time.Duration) error {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, pgUser, pgPassword, pgDB)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		db, err := sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for PostgreSQL to be ready after %s", timeout)
}
