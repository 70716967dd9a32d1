package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// SQLSink executes statements against a database/sql connection.
type SQLSink struct {
	db     *sql.DB
	driver string
	table  string
}

// Open connects to the database named by dsn. The driver follows the scheme:
//
//	postgres://, postgresql://  pgx
//	mysql://                    go-sql-driver/mysql (rest of the DSN in its native form,
//	                            sessions run with NO_BACKSLASH_ESCAPES)
//	sqlite3://, file:           go-sqlite3
//
// A bare path is treated as a SQLite file.
func Open(ctx context.Context, dsn, table string) (*SQLSink, error) {
	driver, source, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultTable
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to open sink", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewSinkError(fmt.Sprintf("%s sink is unreachable", driver), err)
	}
	return &SQLSink{db: db, driver: driver, table: table}, nil
}

// mysqlSQLMode is set on every MySQL session.
const mysqlSQLMode = "'NO_BACKSLASH_ESCAPES'"

func driverFor(dsn string) (driver, source string, err error) {
	switch {
	case dsn == "":
		return "", "", apperrors.NewConfigError("sink DSN is empty", nil)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"):
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
		if err != nil {
			return "", "", apperrors.NewConfigError("invalid mysql DSN", err)
		}
		// Literals only double single quotes; a backslash must stay an
		// ordinary character.
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params["sql_mode"] = mysqlSQLMode
		return "mysql", cfg.FormatDSN(), nil
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://"), nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite3", dsn, nil
	case strings.Contains(dsn, "://"):
		return "", "", apperrors.NewConfigError(fmt.Sprintf("unsupported sink scheme in %q", dsn), nil)
	default:
		return "sqlite3", dsn, nil
	}
}

// Driver returns the database/sql driver name in use.
func (s *SQLSink) Driver() string {
	return s.driver
}

// Table returns the target table.
func (s *SQLSink) Table() string {
	return s.table
}

// DB exposes the underlying handle.
func (s *SQLSink) DB() *sql.DB {
	return s.db
}

func (s *SQLSink) Insert(ctx context.Context, stmt string) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return rejected(err)
	}
	return nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}

// rejected wraps a driver error as SINK_REJECTED, keeping the server error
// code when the driver exposes one.
func rejected(err error) error {
	e := apperrors.NewSinkError("insert rejected", err)

	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pgErr):
		e = e.WithDetails(map[string]interface{}{"sqlstate": pgErr.Code})
	case errors.As(err, &myErr):
		e = e.WithDetails(map[string]interface{}{"mysql_errno": myErr.Number})
	}
	return e
}
