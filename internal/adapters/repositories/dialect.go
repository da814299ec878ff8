package repositories

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects SQL syntax for the configured database driver. Queries
// are written with ? placeholders and rebound for Postgres.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

func ParseDialect(driver string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(driver))); d {
	case SQLite, Postgres:
		return d, nil
	}
	return "", fmt.Errorf("unknown db driver %q", driver)
}

// Rebind rewrites ? placeholders to $1..$n for Postgres.
func (d Dialect) Rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (d Dialect) serialKey() string {
	if d == Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d Dialect) blob() string {
	if d == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
