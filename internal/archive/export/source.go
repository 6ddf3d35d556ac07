package export

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Source is a database that can be paged through table by table.
type Source interface {
	// Tables lists the exportable tables, sorted by name.
	Tables(ctx context.Context) ([]string, error)

	// Scan reads every row of table and hands them to fn in pages of at
	// most pageSize rows. columns is the same for every call. The last
	// call may carry an empty page, so an empty table still yields its
	// columns.
	Scan(ctx context.Context, table string, pageSize int, fn func(columns []string, page [][]any) error) error
}

// Supported source drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// MySQLConfig holds the connection settings of a MySQL source.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN formats c as a go-sql-driver/mysql data source name.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Name
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// SQLSource is a Source over database/sql.
type SQLSource struct {
	db     *sql.DB
	driver string
}

// OpenSource connects to a source database. driver is DriverMySQL or
// DriverSQLite.
func OpenSource(driver, dsn string) (*SQLSource, error) {
	switch driver {
	case DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported source driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	return &SQLSource{db: db, driver: driver}, nil
}

// NewSQLSource wraps an open connection.
func NewSQLSource(db *sql.DB, driver string) *SQLSource {
	return &SQLSource{db: db, driver: driver}
}

// Close closes the source connection.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// Tables implements Source.
func (s *SQLSource) Tables(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	if s.driver == DriverMySQL {
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Scan implements Source.
func (s *SQLSource) Scan(ctx context.Context, table string, pageSize int, fn func([]string, [][]any) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.quote(table))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	page := make([][]any, 0, pageSize)
	for rows.Next() {
		row := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}

		page = append(page, row)
		if len(page) == pageSize {
			if err := fn(columns, page); err != nil {
				return err
			}
			page = make([][]any, 0, pageSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", table, err)
	}

	return fn(columns, page)
}

func (s *SQLSource) quote(name string) string {
	if s.driver == DriverMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
