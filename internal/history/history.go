// Package history records every statement upload in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DisplayTimeLayout is how upload times are shown to users.
const DisplayTimeLayout = "02.01.2006 15:04:05"

// Record describes one upload.
type Record struct {
	ID                 string    `json:"id"`
	Filename           string    `json:"filename"`
	UploadedAt         time.Time `json:"uploaded_at"`
	PeriodFrom         string    `json:"period_from"`
	PeriodTo           string    `json:"period_to"`
	Owner              string    `json:"owner"`
	TransactionsInFile int       `json:"transactions_in_file"`
	NewAdded           int       `json:"new_added"`
	TotalInSystem      int       `json:"total_in_system"`
	SourceURI          string    `json:"source_uri,omitempty"`
}

// MarshalJSON renders UploadedAt in local display form (dd.mm.yyyy hh:mm:ss).
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(struct {
		alias
		UploadedAt string `json:"uploaded_at"`
	}{
		alias:      alias(r),
		UploadedAt: r.UploadedAt.Local().Format(DisplayTimeLayout),
	})
}

// Store persists upload records.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database at %s: %w", path, err)
	}
	// A single connection avoids SQLite lock contention.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}

	log.Debug().Str("path", path).Msg("History database opened")
	return &Store{db: db, log: log, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("Migrate: creating sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("Migrate: opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("Migrate: creating migrate instance: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		s.log.Debug().Msg("No new history migrations to apply")
	case err != nil:
		return fmt.Errorf("Migrate: applying migrations: %w", err)
	default:
		version, _, _ := m.Version()
		s.log.Info().Uint("version", version).Msg("History migrations applied")
	}
	return nil
}

// Add stores rec, filling in ID and UploadedAt when they are empty.
func (s *Store) Add(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads
			(id, filename, uploaded_at, period_from, period_to, owner,
			 transactions_in_file, new_added, total_in_system, source_uri)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.UploadedAt.UTC().Format(time.RFC3339Nano),
		rec.PeriodFrom, rec.PeriodTo, rec.Owner,
		rec.TransactionsInFile, rec.NewAdded, rec.TotalInSystem, rec.SourceURI,
	)
	if err != nil {
		return Record{}, fmt.Errorf("Add: inserting upload %s: %w", rec.ID, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns every record.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, filename, uploaded_at, period_from, period_to, owner,
		       transactions_in_file, new_added, total_in_system, source_uri
		FROM uploads
		ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: querying uploads: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec        Record
			uploadedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &uploadedAt, &rec.PeriodFrom, &rec.PeriodTo, &rec.Owner,
			&rec.TransactionsInFile, &rec.NewAdded, &rec.TotalInSystem, &rec.SourceURI); err != nil {
			return nil, fmt.Errorf("List: scanning upload: %w", err)
		}
		rec.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("List: parsing uploaded_at %q: %w", uploadedAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: iterating uploads: %w", err)
	}
	return records, nil
}
