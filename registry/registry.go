// Package registry stores the firm's client roster: the billing-side view of
// each company, with its fee, VAT number and the technician responsible for
// the account.
package registry

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"timeledger/namenorm"
	"timeledger/technician"
)

// Client is one registry row.
type Client struct {
	ID         int64
	Name       string
	VATNumber  string
	Technician string
	MonthlyFee float64
}

// Store is the SQLite-backed client registry.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping registry db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	vat_number TEXT NOT NULL DEFAULT '',
	technician TEXT NOT NULL DEFAULT '',
	monthly_fee REAL NOT NULL DEFAULT 0 CHECK(monthly_fee >= 0),
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	return nil
}

// ListClients returns every client, ordered by name.
func (s *Store) ListClients() ([]Client, error) {
	rows, err := s.db.Query(`
SELECT id, name, vat_number, technician, monthly_fee
FROM clients
ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.VATNumber, &c.Technician, &c.MonthlyFee); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}

// InsertClient adds one client. The second return value is false when a
// client with the same name already exists.
func (s *Store) InsertClient(c Client) (int64, bool, error) {
	res, err := s.db.Exec(`
INSERT OR IGNORE INTO clients (name, vat_number, technician, monthly_fee)
VALUES (?, ?, ?, ?);`,
		c.Name, c.VATNumber, c.Technician, c.MonthlyFee)
	if err != nil {
		return 0, false, fmt.Errorf("insert client: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("read inserted row count: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("read inserted row id: %w", err)
	}
	return id, true, nil
}

// PrimaryTechnician finds the canonical technician responsible for the
// company whose strong normalized name equals companyKey. Unrecognized
// technician spellings in the registry yield nothing rather than a guess.
func PrimaryTechnician(clients []Client, resolver *technician.Resolver, companyKey string) string {
	if companyKey == "" {
		return ""
	}
	for _, c := range clients {
		if namenorm.Company(c.Name) != companyKey {
			continue
		}
		cls := resolver.Resolve(c.Technician)
		if cls.Kind == technician.Known {
			return cls.Canonical
		}
		return ""
	}
	return ""
}
