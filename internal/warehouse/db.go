package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Config holds warehouse connection settings
type Config struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
	ConnTimeout time.Duration
}

// DefaultSSLMode encrypts the session without verifying the certificate chain
const DefaultSSLMode = "require"

// ConfigFrom builds connection settings from the run configuration. An
// endpoint address reported by the provisioner takes precedence over the
// configured host.
func ConfigFrom(c models.Cluster, endpoint string, port int) Config {
	cfg := Config{
		Host:        c.Host,
		Port:        c.DBPort,
		Database:    c.DBName,
		User:        c.DBUser,
		Password:    c.DBPassword,
		SSLMode:     c.SSLMode,
		ConnTimeout: 30 * time.Second,
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode
	}
	if endpoint != "" {
		cfg.Host = endpoint
	}
	if port > 0 {
		cfg.Port = port
	}
	return cfg
}

// String renders the settings with the password masked
func (c Config) String() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=*** sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.sslMode())
}

// DSN renders the keyword/value connection string. TLS and fallback
// settings are derived from it, so it must name the real endpoint.
func (c Config) DSN() string {
	parts := []string{
		"host=" + dsnValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"dbname=" + dsnValue(c.Database),
		"user=" + dsnValue(c.User),
		"password=" + dsnValue(c.Password),
		"sslmode=" + dsnValue(c.sslMode()),
	}
	if c.ConnTimeout > 0 {
		secs := int(math.Ceil(c.ConnTimeout.Seconds()))
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", secs))
	}
	return strings.Join(parts, " ")
}

func (c Config) sslMode() string {
	if c.SSLMode == "" {
		return DefaultSSLMode
	}
	return c.SSLMode
}

// dsnValue quotes a keyword/value DSN value when it is empty or holds
// spaces, quotes or backslashes
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t\n") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// ConnConfig parses the settings into a pgx connection config
func ConnConfig(cfg Config) (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to build connection settings").
			WithContext("host", cfg.Host).
			WithContext("sslmode", cfg.sslMode())
	}
	// Redshift does not support the extended protocol's statement cache
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return connConfig, nil
}

// Open connects to the warehouse over the Postgres wire protocol. The pool
// is capped at one connection; every step runs on a single session.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	connConfig, err := ConnConfig(cfg)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		appErr := errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to connect to warehouse").
			WithContext("host", cfg.Host).
			WithContext("database", cfg.Database)
		if strings.Contains(strings.ToLower(err.Error()), "password authentication failed") {
			_ = appErr.WithSuggestions("Verify cluster.db_user and cluster.db_password")
		} else {
			_ = appErr.WithSuggestions(
				"Check that the cluster is available and its security group allows inbound traffic on the port",
			).AsRecoverable()
		}
		return nil, appErr
	}

	return db, nil
}
