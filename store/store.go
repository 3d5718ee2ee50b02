// Package store persists crawl sessions and their listings in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// DriverSQLite is the registered name of the SQLite driver.
	DriverSQLite = "sqlite3"
	// DefaultPingTimeout bounds the connectivity check in Open.
	DefaultPingTimeout = 5 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scraping_sessions (
		id TEXT PRIMARY KEY,
		session_date TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		total_jobs INTEGER NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		stopped INTEGER NOT NULL DEFAULT 0,
		sites_scraped TEXT,
		queries_used TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES scraping_sessions (id),
		title TEXT NOT NULL,
		company TEXT,
		location TEXT,
		description TEXT,
		url TEXT,
		source_site TEXT,
		scraped_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		category TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS job_skills (
		job_id INTEGER NOT NULL REFERENCES jobs (id),
		skill_id INTEGER NOT NULL REFERENCES skills (id),
		position INTEGER NOT NULL,
		PRIMARY KEY (job_id, skill_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_session ON jobs (session_id)`,
}

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("store: session not found")

// Categorizer resolves the taxonomy category of a matched skill.
type Categorizer interface {
	CategoryOf(skill string) (string, bool)
}

// Session is one persisted crawl run.
type Session struct {
	ID           string       `db:"id"`
	StartedAt    time.Time    `db:"session_date"`
	FinishedAt   sql.NullTime `db:"finished_at"`
	TotalJobs    int          `db:"total_jobs"`
	ErrorCount   int          `db:"error_count"`
	Stopped      bool         `db:"stopped"`
	SitesScraped string       `db:"sites_scraped"`
	QueriesUsed  string       `db:"queries_used"`
}

type jobRow struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Company     string    `db:"company"`
	Location    string    `db:"location"`
	Description string    `db:"description"`
	URL         string    `db:"url"`
	SourceSite  string    `db:"source_site"`
	ScrapedAt   time.Time `db:"scraped_at"`
}

type skillRow struct {
	JobID int64  `db:"job_id"`
	Name  string `db:"name"`
}

// Store handles persistence of crawl sessions.
type Store struct {
	db         *sqlx.DB
	categories Categorizer
	newID      func() string
}

// Option configures a Store.
type Option func(*Store)

// WithCategorizer records each skill's category when it is first stored.
func WithCategorizer(c Categorizer) Option {
	return func(s *Store) {
		s.categories = c
	}
}

// Open connects to dsn with driver and verifies the connection.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(db, opts...), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveSession stores result and its listings in one transaction and returns the new session id.
func (s *Store) SaveSession(ctx context.Context, result *models.CrawlResult, sites, queries []string) (string, error) {
	if result == nil {
		return "", errors.New("store: nil crawl result")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := s.newID()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scraping_sessions
			(id, session_date, finished_at, total_jobs, error_count, stopped, sites_scraped, queries_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.StartTime, result.EndTime, len(result.Listings), result.ErrorCount, result.Stopped,
		strings.Join(sites, ", "), strings.Join(queries, ", "),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	skillIDs := make(map[string]int64)
	for _, job := range result.Listings {
		if err := s.saveJob(ctx, tx, id, job, skillIDs); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit session: %w", err)
	}
	return id, nil
}

func (s *Store) saveJob(ctx context.Context, tx *sqlx.Tx, sessionID string, job *models.JobListing, skillIDs map[string]int64) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (session_id, title, company, location, description, url, source_site, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, job.Title, job.Company, job.Location, job.Description, job.URL, job.SourceSite, job.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job %q: %w", job.Title, err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("job id for %q: %w", job.Title, err)
	}

	for pos, skill := range job.IdentifiedSkills {
		skillID, ok := skillIDs[skill]
		if !ok {
			skillID, err = s.upsertSkill(ctx, tx, skill)
			if err != nil {
				return err
			}
			skillIDs[skill] = skillID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO job_skills (job_id, skill_id, position) VALUES (?, ?, ?)`,
			jobID, skillID, pos,
		); err != nil {
			return fmt.Errorf("link skill %q: %w", skill, err)
		}
	}
	return nil
}

func (s *Store) upsertSkill(ctx context.Context, tx *sqlx.Tx, skill string) (int64, error) {
	var category sql.NullString
	if s.categories != nil {
		if name, ok := s.categories.CategoryOf(skill); ok {
			category = sql.NullString{String: name, Valid: true}
		}
	}

	var id int64
	err := tx.GetContext(ctx, &id,
		`INSERT INTO skills (name, category) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET category = COALESCE(excluded.category, skills.category)
		RETURNING id`,
		skill, category,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert skill %q: %w", skill, err)
	}
	return id, nil
}

// GetSession returns the session row for id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var session Session
	err := s.db.GetContext(ctx, &session,
		`SELECT id, session_date, finished_at, total_jobs, error_count, stopped, sites_scraped, queries_used
		FROM scraping_sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &session, nil
}

// ListJobs returns the listings stored for sessionID in insertion order, with their skills.
func (s *Store) ListJobs(ctx context.Context, sessionID string) ([]*models.JobListing, error) {
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, title, company, location, description, url, source_site, scraped_at
		FROM jobs WHERE session_id = ? ORDER BY id`, sessionID); err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}

	var skills []skillRow
	if err := s.db.SelectContext(ctx, &skills,
		`SELECT js.job_id, s.name
		FROM job_skills js
		JOIN skills s ON s.id = js.skill_id
		JOIN jobs j ON j.id = js.job_id
		WHERE j.session_id = ?
		ORDER BY js.job_id, js.position`, sessionID); err != nil {
		return nil, fmt.Errorf("select job skills: %w", err)
	}

	byJob := make(map[int64][]string, len(rows))
	for _, sk := range skills {
		byJob[sk.JobID] = append(byJob[sk.JobID], sk.Name)
	}

	jobs := make([]*models.JobListing, 0, len(rows))
	for _, row := range rows {
		job := &models.JobListing{
			Title:       row.Title,
			Company:     row.Company,
			Location:    row.Location,
			Description: row.Description,
			URL:         row.URL,
			SourceSite:  row.SourceSite,
			ScrapedAt:   row.ScrapedAt,
		}
		job.SetSkills(byJob[row.ID])
		jobs = append(jobs, job)
	}
	return jobs, nil
}
