package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS wildcards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subdomain TEXT NOT NULL,
	domain TEXT NOT NULL,
	address TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	UNIQUE (subdomain, domain, address, timestamp)
);

CREATE INDEX IF NOT EXISTS wildcards_domain_timestamp ON wildcards (domain, timestamp);
`

// SQLite is a Store backed by a SQLite database file
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	// SQLite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

// Add inserts rec, returning core.ErrDuplicate on a uniqueness conflict
func (s *SQLite) Add(ctx context.Context, rec core.WildcardRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO wildcards (subdomain, domain, address, timestamp) VALUES (?, ?, ?, ?)",
		rec.Subdomain, rec.Domain, rec.Address, rec.Timestamp,
	)
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return duplicate(rec)
	}
	return fmt.Errorf("failed to store wildcard %s -> %s: %w", rec.Zone(), rec.Address, err)
}

// Query returns the records of domain detected at timestamp
func (s *SQLite) Query(ctx context.Context, domain string, timestamp int64) ([]core.WildcardRecord, error) {
	return s.query(ctx,
		"SELECT subdomain, domain, address, timestamp FROM wildcards WHERE domain = ? AND timestamp = ?",
		domain, timestamp,
	)
}

// QueryDomain returns all records of domain
func (s *SQLite) QueryDomain(ctx context.Context, domain string) ([]core.WildcardRecord, error) {
	return s.query(ctx,
		"SELECT subdomain, domain, address, timestamp FROM wildcards WHERE domain = ?",
		domain,
	)
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]core.WildcardRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wildcards: %w", err)
	}
	defer rows.Close()

	var out []core.WildcardRecord
	for rows.Next() {
		var rec core.WildcardRecord
		if err := rows.Scan(&rec.Subdomain, &rec.Domain, &rec.Address, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to read wildcard row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wildcards: %w", err)
	}

	Sort(out)
	return out, nil
}

func duplicate(rec core.WildcardRecord) error {
	return fmt.Errorf("%w: %s -> %s @ %d", core.ErrDuplicate, rec.Zone(), rec.Address, rec.Timestamp)
}
