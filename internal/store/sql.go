package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"pandemus/internal/model"
)

// Supported database/sql drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schemas = map[string]string{
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS simulations (
			id         BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			name       VARCHAR(255),
			days       INTEGER NOT NULL,
			infected   JSONB NOT NULL,
			dead       JSONB NOT NULL,
			recovered  JSONB NOT NULL
		)`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS simulations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			name       TEXT,
			days       INTEGER NOT NULL,
			infected   TEXT NOT NULL,
			dead       TEXT NOT NULL,
			recovered  TEXT NOT NULL
		)`,
}

const columns = `id, created_at, name, days, infected, dead, recovered`

// SQLStore handles database operations for simulations on Postgres or SQLite
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(host, port, user, password, dbname string, logger *slog.Logger) (*SQLStore, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, DriverPostgres, logger)
}

// NewSQLiteStore opens (or creates) a SQLite database at path. ":memory:"
// gives a private in-memory database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, DriverSQLite, logger)
}

func newSQLStore(db *sql.DB, driver string, logger *slog.Logger) (*SQLStore, error) {
	s := &SQLStore{
		db:     db,
		driver: driver,
		logger: logger,
		now:    time.Now,
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the simulations table when missing
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemas[s.driver]); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Health checks if the database is accessible
func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a simulation and returns it with its assigned id
func (s *SQLStore) Create(ctx context.Context, sim *model.Simulation) (*model.Simulation, error) {
	createdAt := sim.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	infected, dead, recovered, err := encodeSeries(sim)
	if err != nil {
		return nil, err
	}

	query := s.rebind(`
		INSERT INTO simulations (created_at, name, days, infected, dead, recovered)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + columns)

	created, err := scanSimulation(s.db.QueryRowContext(ctx, query,
		formatTime(createdAt), sim.Name, sim.Days, infected, dead, recovered))
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	s.logger.Debug("Simulation stored", "simulation_id", created.ID, "days", created.Days)
	return created, nil
}

// List retrieves all simulations ordered by id
func (s *SQLStore) List(ctx context.Context) ([]*model.Simulation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM simulations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulations: %w", err)
	}
	defer rows.Close()

	sims := []*model.Simulation{}
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation: %w", err)
		}
		sims = append(sims, sim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sims, nil
}

// Get retrieves a simulation by id
func (s *SQLStore) Get(ctx context.Context, id int64) (*model.Simulation, error) {
	query := s.rebind(`SELECT ` + columns + ` FROM simulations WHERE id = ?`)

	sim, err := scanSimulation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query simulation: %w", err)
	}
	return sim, nil
}

// Delete removes a simulation and returns the deleted row
func (s *SQLStore) Delete(ctx context.Context, id int64) (*model.Simulation, error) {
	query := s.rebind(`DELETE FROM simulations WHERE id = ? RETURNING ` + columns)

	sim, err := scanSimulation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete simulation: %w", err)
	}
	return sim, nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSimulation(row scanner) (*model.Simulation, error) {
	var (
		sim                       model.Simulation
		createdAt                 string
		name                      sql.NullString
		infected, dead, recovered []byte
	)
	if err := row.Scan(&sim.ID, &createdAt, &name, &sim.Days, &infected, &dead, &recovered); err != nil {
		return nil, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sim.CreatedAt = t
	if name.Valid {
		sim.Name = &name.String
	}
	for _, col := range []struct {
		raw  []byte
		dest *[]float64
	}{
		{infected, &sim.Infected},
		{dead, &sim.Dead},
		{recovered, &sim.Recovered},
	} {
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode series: %w", err)
		}
	}
	return &sim, nil
}

func encodeSeries(sim *model.Simulation) (infected, dead, recovered string, err error) {
	values := make([]string, 3)
	for i, series := range [][]float64{sim.Infected, sim.Dead, sim.Recovered} {
		if series == nil {
			series = []float64{}
		}
		raw, err := json.Marshal(series)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to encode series: %w", err)
		}
		values[i] = string(raw)
	}
	return values[0], values[1], values[2], nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 (what we write, and what database/sql produces
// when a driver returns time.Time) and the space-separated SQLite layout.
func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
