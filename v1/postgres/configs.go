package postgres

import "time"

// Config holds connection settings for PostgreSQL.
type Config struct {
	Connection        Connection        `yaml:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details"`
}

type Connection struct {
	Host     string `yaml:"host" envconfig:"POSTGRES_HOST"`
	Port     string `yaml:"port" envconfig:"POSTGRES_PORT"`
	User     string `yaml:"user" envconfig:"POSTGRES_USER"`
	Password string `yaml:"password" envconfig:"POSTGRES_PASSWORD" json:"-"` //nolint:gosec
	DbName   string `yaml:"db_name" envconfig:"POSTGRES_DB"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"POSTGRES_SSLMODE"`
}

// ConnectionDetails tunes the database/sql pool. Zero values fall back to
// 50 open, 25 idle and a one-minute lifetime.
type ConnectionDetails struct {
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"POSTGRES_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"POSTGRES_CONN_MAX_LIFETIME"`
}

func (c Connection) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DbName +
		" sslmode=" + sslMode
}
