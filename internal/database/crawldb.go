package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/comicspider/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "comicspider.db"

// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
// and no database file exists.
var ErrDatabaseNotFound = errors.New("database not found")

// CrawlDB is the SQLite run history.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS domain_runs (
		run_id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		state TEXT NOT NULL,
		pages_visited INTEGER DEFAULT 0,
		pages_with_images INTEGER DEFAULT 0,
		images_kept INTEGER DEFAULT 0,
		images_trashed INTEGER DEFAULT 0,
		images_quarantined INTEGER DEFAULT 0,
		average_size REAL DEFAULT 0,
		low_yield INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON domain_runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON domain_runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		requested_url TEXT NOT NULL,
		status_code INTEGER,
		redirects INTEGER DEFAULT 0,
		links INTEGER DEFAULT 0,
		images INTEGER DEFAULT 0,
		error TEXT,
		visited_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);

	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		page_url TEXT,
		filename TEXT,
		size_bytes INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		hash TEXT,
		exif TEXT,
		recorded_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);
	CREATE INDEX IF NOT EXISTS idx_images_hash ON images(hash);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RecordPage inserts one page visit of run runID.
func (cdb *CrawlDB) RecordPage(ctx context.Context, runID string, visit model.PageVisit) error {
	query := `
	INSERT INTO pages (run_id, url, requested_url, status_code, redirects, links, images, error, visited_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		visit.URL,
		visit.RequestedURL,
		visit.StatusCode,
		visit.Redirects,
		visit.Links,
		visit.Images,
		visit.Error,
		formatTimestamp(visit.VisitedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page visit: %w", err)
	}
	return nil
}

// RecordImage inserts or updates the record of an image URL in run runID.
// A later record replaces an earlier one, so an image kept during the crawl
// and quarantined by cleanup ends up quarantined.
func (cdb *CrawlDB) RecordImage(ctx context.Context, runID string, image model.ImageRecord) error {
	var exifJSON string
	if len(image.Exif) > 0 {
		data, err := json.Marshal(image.Exif)
		if err != nil {
			return fmt.Errorf("failed to serialize exif: %w", err)
		}
		exifJSON = string(data)
	}

	query := `
	INSERT INTO images (run_id, url, page_url, filename, size_bytes, status, hash, exif, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		page_url = CASE WHEN excluded.page_url = '' THEN images.page_url ELSE excluded.page_url END,
		filename = excluded.filename,
		size_bytes = excluded.size_bytes,
		status = excluded.status,
		hash = CASE WHEN excluded.hash = '' THEN images.hash ELSE excluded.hash END,
		exif = CASE WHEN excluded.exif = '' THEN images.exif ELSE excluded.exif END,
		recorded_at = excluded.recorded_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		image.URL,
		image.PageURL,
		image.Filename,
		image.SizeBytes,
		string(image.Status),
		image.Hash,
		exifJSON,
		formatTimestamp(image.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert image record: %w", err)
	}
	return nil
}

// RecordDomain inserts or replaces the report of a domain run.
func (cdb *CrawlDB) RecordDomain(ctx context.Context, report *model.DomainReport) error {
	if report == nil || report.RunID == "" {
		return errors.New("domain report has no run ID")
	}

	query := `
	INSERT INTO domain_runs (run_id, domain, seed_url, state, pages_visited, pages_with_images,
		images_kept, images_trashed, images_quarantined, average_size, low_yield, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		state = excluded.state,
		pages_visited = excluded.pages_visited,
		pages_with_images = excluded.pages_with_images,
		images_kept = excluded.images_kept,
		images_trashed = excluded.images_trashed,
		images_quarantined = excluded.images_quarantined,
		average_size = excluded.average_size,
		low_yield = excluded.low_yield,
		error = excluded.error,
		finished_at = excluded.finished_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		report.RunID,
		report.Task.DomainName,
		report.Task.SeedURL,
		report.State.String(),
		report.PagesVisited,
		report.PagesWithImages,
		report.ImagesKept,
		report.ImagesTrashed,
		report.ImagesQuarantined,
		report.AverageSize,
		boolToInt(report.LowYield),
		report.Error,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save domain run: %w", err)
	}
	return nil
}

const runColumns = `run_id, domain, seed_url, state, pages_visited, pages_with_images,
	images_kept, images_trashed, images_quarantined, average_size, low_yield, error, started_at, finished_at`

// LatestRuns returns the most recent run of every domain, ordered by domain
// name. A positive limit caps the number of domains.
func (cdb *CrawlDB) LatestRuns(ctx context.Context, limit int) ([]*model.DomainReport, error) {
	query := `
	SELECT ` + runColumns + `
	FROM domain_runs r
	WHERE r.started_at = (SELECT MAX(started_at) FROM domain_runs WHERE domain = r.domain)
	ORDER BY r.domain
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return cdb.queryRuns(ctx, query, args...)
}

// RunHistory returns every run of domain, newest first.
func (cdb *CrawlDB) RunHistory(ctx context.Context, domain string) ([]*model.DomainReport, error) {
	query := `
	SELECT ` + runColumns + `
	FROM domain_runs
	WHERE domain = ?
	ORDER BY started_at DESC
	`
	return cdb.queryRuns(ctx, query, model.NormalizeDomain(domain))
}

// GetRun returns the run with the given ID, or nil if there is none.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*model.DomainReport, error) {
	query := `SELECT ` + runColumns + ` FROM domain_runs WHERE run_id = ?`
	runs, err := cdb.queryRuns(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

func (cdb *CrawlDB) queryRuns(ctx context.Context, query string, args ...any) ([]*model.DomainReport, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain runs: %w", err)
	}
	defer rows.Close()

	var results []*model.DomainReport
	for rows.Next() {
		var (
			r          model.DomainReport
			state      string
			errMsg     sql.NullString
			startedAt  string
			finishedAt sql.NullString
		)
		err := rows.Scan(
			&r.RunID,
			&r.Task.DomainName,
			&r.Task.SeedURL,
			&state,
			&r.PagesVisited,
			&r.PagesWithImages,
			&r.ImagesKept,
			&r.ImagesTrashed,
			&r.ImagesQuarantined,
			&r.AverageSize,
			&r.LowYield,
			&errMsg,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain run: %w", err)
		}
		r.State = model.ParseWorkerState(state)
		r.Error = errMsg.String
		r.StartedAt = parseTimestamp(startedAt)
		r.FinishedAt = parseTimestamp(finishedAt.String)
		results = append(results, &r)
	}
	return results, rows.Err()
}

// PagesForRun returns the pages scanned in run runID in visit order.
func (cdb *CrawlDB) PagesForRun(ctx context.Context, runID string) ([]model.PageVisit, error) {
	query := `
	SELECT url, requested_url, status_code, redirects, links, images, error, visited_at
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var results []model.PageVisit
	for rows.Next() {
		var (
			v         model.PageVisit
			errMsg    sql.NullString
			visitedAt string
		)
		if err := rows.Scan(&v.URL, &v.RequestedURL, &v.StatusCode, &v.Redirects, &v.Links, &v.Images, &errMsg, &visitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		v.Error = errMsg.String
		v.VisitedAt = parseTimestamp(visitedAt)
		results = append(results, v)
	}
	return results, rows.Err()
}

// ImagesForRun returns the image records of run runID ordered by URL.
func (cdb *CrawlDB) ImagesForRun(ctx context.Context, runID string) ([]model.ImageRecord, error) {
	query := `
	SELECT url, page_url, filename, size_bytes, status, hash, exif, recorded_at
	FROM images
	WHERE run_id = ?
	ORDER BY url
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var results []model.ImageRecord
	for rows.Next() {
		var (
			img        model.ImageRecord
			pageURL    sql.NullString
			filename   sql.NullString
			status     string
			hash       sql.NullString
			exifJSON   sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&img.URL, &pageURL, &filename, &img.SizeBytes, &status, &hash, &exifJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.PageURL = pageURL.String
		img.Filename = filename.String
		img.Status = model.ImageStatus(status)
		img.Hash = hash.String
		img.RecordedAt = parseTimestamp(recordedAt)
		if exifJSON.String != "" {
			if err := json.Unmarshal([]byte(exifJSON.String), &img.Exif); err != nil {
				return nil, fmt.Errorf("failed to parse exif: %w", err)
			}
		}
		results = append(results, img)
	}
	return results, rows.Err()
}

// ImagesForDomain returns the image records of the most recent run of
// domain. It returns nil when the domain was never crawled.
func (cdb *CrawlDB) ImagesForDomain(ctx context.Context, domain string) ([]model.ImageRecord, error) {
	query := `
	SELECT run_id FROM domain_runs
	WHERE domain = ?
	ORDER BY started_at DESC
	LIMIT 1
	`

	var runID string
	err := cdb.db.QueryRowContext(ctx, query, model.NormalizeDomain(domain)).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest run: %w", err)
	}
	return cdb.ImagesForRun(ctx, runID)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormat has a fixed width: text order of stored timestamps is
// chronological order.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampFormat)
}

// timestampFormats contains the formats parseTimestamp accepts.
var timestampFormats = []string{
	timestampFormat,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with the first matching format. It returns the
// zero time if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
