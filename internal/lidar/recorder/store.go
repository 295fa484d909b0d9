package recorder

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/scan"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoScans is returned when a query finds no recorded runs or scans.
var ErrNoScans = errors.New("no recorded scans")

// connPragmas apply to every pooled connection; pragmas persist in the
// database file and only need running once.
const connPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Store persists recording runs and their scans in SQLite.
type Store struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	s := &Store{DB: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// MigrateUp runs all pending migrations up to the latest version.
// Returns nil if no migrations were needed (already at latest version).
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Note: m is not closed here because that would close the shared DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Run describes one recording session of one sensor.
type Run struct {
	RunID      string      `json:"run_id"`
	SensorName string      `json:"sensor_name"`
	Started    time.Time   `json:"started"`
	Config     scan.Config `json:"config"`
}

// ScanRecord is one stored scan.
type ScanRecord struct {
	RunID     string        `json:"run_id"`
	Seq       uint64        `json:"seq"`
	SimTime   time.Duration `json:"sim_time"`
	Ranges    []float64     `json:"-"`
	Intensity float64       `json:"intensity"`
	Failed    bool          `json:"failed"`
	Stale     bool          `json:"stale"`
}

// Scan returns the record as a scan. Every sample carries the recorded
// intensity.
func (r ScanRecord) Scan() scan.Scan {
	intensities := make([]float64, len(r.Ranges))
	for i := range intensities {
		intensities[i] = r.Intensity
	}
	return scan.Scan{
		Seq:         r.Seq,
		SimTime:     r.SimTime,
		Ranges:      append([]float64(nil), r.Ranges...),
		Intensities: intensities,
		Failed:      r.Failed,
		Stale:       r.Stale,
	}
}

// StartRun registers a new run and returns its id.
func (s *Store) StartRun(ctx context.Context, sensorName string, cfg scan.Config, started time.Time) (Run, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("failed to encode config: %w", err)
	}
	run := Run{
		RunID:      uuid.NewString(),
		SensorName: sensorName,
		Started:    started,
		Config:     cfg,
	}
	_, err = s.ExecContext(ctx,
		`INSERT INTO lidar_run (run_id, sensor_name, started_unix_nanos, config_json) VALUES (?, ?, ?, ?)`,
		run.RunID, sensorName, started.UnixNano(), string(cfgJSON))
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// InsertScans writes records in one transaction.
func (s *Store) InsertScans(ctx context.Context, records []ScanRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lidar_scan
		(run_id, seq, sim_time_nanos, measurements, ranges_blob, intensity, failed, stale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		blob, err := laserscan.Compress([]string{laserscan.EncodeRanges(r.Ranges)})
		if err != nil {
			return fmt.Errorf("scan %d: %w", r.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx, r.RunID, int64(r.Seq), int64(r.SimTime), len(r.Ranges), blob, r.Intensity, r.Failed, r.Stale); err != nil {
			return fmt.Errorf("failed to insert scan %d: %w", r.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scans: %w", err)
	}
	return nil
}

// Scans returns every scan of a run ordered by sequence number.
func (s *Store) Scans(ctx context.Context, runID string) ([]ScanRecord, error) {
	rows, err := s.QueryContext(ctx, `SELECT seq, sim_time_nanos, measurements, ranges_blob, intensity, failed, stale
		FROM lidar_scan WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var (
			r            ScanRecord
			seq, simTime int64
			measurements int
			blob         string
		)
		if err := rows.Scan(&seq, &simTime, &measurements, &blob, &r.Intensity, &r.Failed, &r.Stale); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		lines, err := laserscan.Decompress(blob)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", seq, err)
		}
		if len(lines) != 1 {
			return nil, fmt.Errorf("scan %d: expected one range line, got %d", seq, len(lines))
		}
		if r.Ranges, err = laserscan.ParseRanges(lines[0]); err != nil {
			return nil, fmt.Errorf("scan %d: %w", seq, err)
		}
		if len(r.Ranges) != measurements {
			return nil, fmt.Errorf("scan %d: %d ranges stored, %d expected", seq, len(r.Ranges), measurements)
		}
		r.RunID = runID
		r.Seq = uint64(seq)
		r.SimTime = time.Duration(simTime)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNoScans)
	}
	return out, nil
}

// Runs lists every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.QueryContext(ctx, `SELECT run_id, sensor_name, started_unix_nanos, config_json
		FROM lidar_run ORDER BY started_unix_nanos DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			cfgJSON string
		)
		if err := rows.Scan(&r.RunID, &r.SensorName, &started, &cfgJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
			return nil, fmt.Errorf("run %s: failed to decode config: %w", r.RunID, err)
		}
		r.Started = time.Unix(0, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns the run with the given id.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	var (
		r       = Run{RunID: runID}
		started int64
		cfgJSON string
	)
	err := s.QueryRowContext(ctx, `SELECT sensor_name, started_unix_nanos, config_json
		FROM lidar_run WHERE run_id = ?`, runID).Scan(&r.SensorName, &started, &cfgJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNoScans)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return Run{}, fmt.Errorf("run %s: failed to decode config: %w", runID, err)
	}
	r.Started = time.Unix(0, started)
	return r, nil
}

// Messages returns the scans of a run as laser scan messages, using the
// run's configuration for the angle metadata.
func (s *Store) Messages(ctx context.Context, runID string) ([]laserscan.Message, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	records, err := s.Scans(ctx, runID)
	if err != nil {
		return nil, err
	}
	table := scan.NewDirectionTable(run.Config)
	msgs := make([]laserscan.Message, len(records))
	for i, r := range records {
		msgs[i] = laserscan.FromScan(r.Scan(), table, run.Config, run.SensorName)
	}
	return msgs, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoScans
	}
	return runs[0], nil
}
