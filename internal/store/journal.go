package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/storylab/internal/grading"
)

// Journal records play-throughs in a sqlite database.
type Journal struct {
	DB *sql.DB
}

// Event is one journaled step event.
type Event struct {
	StepID int
	Kind   string
	Detail string
	At     time.Time
}

// Grade is one journaled verdict.
type Grade struct {
	StepID   int
	Question string
	Answer   string
	Pass     bool
	Fallback bool
	Message  string
}

func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			lesson TEXT,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME,
			completed INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			step_id INTEGER,
			kind TEXT,
			detail TEXT,
			ts DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS grades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			step_id INTEGER,
			question TEXT,
			answer TEXT,
			pass INTEGER,
			fallback INTEGER,
			message TEXT,
			ts DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err = db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Journal{DB: db}, nil
}

func (j *Journal) Close() error {
	return j.DB.Close()
}

func (j *Journal) StartSession(ctx context.Context, sessionID, lessonID string) error {
	query := `INSERT INTO sessions (id, lesson) VALUES (?, ?)`
	_, err := j.DB.ExecContext(ctx, query, sessionID, lessonID)
	return err
}

func (j *Journal) RecordEvent(ctx context.Context, sessionID string, stepID int, kind, detail string) error {
	query := `INSERT INTO events (session_id, step_id, kind, detail) VALUES (?, ?, ?, ?)`
	_, err := j.DB.ExecContext(ctx, query, sessionID, stepID, kind, detail)
	return err
}

func (j *Journal) FinishSession(ctx context.Context, sessionID string, completed bool) error {
	query := `UPDATE sessions SET finished_at = datetime('now'), completed = ? WHERE id = ?`
	_, err := j.DB.ExecContext(ctx, query, completed, sessionID)
	return err
}

func (j *Journal) RecordGrade(ctx context.Context, sessionID string, stepID int, req grading.Request, v grading.Verdict) error {
	query := `INSERT INTO grades (session_id, step_id, question, answer, pass, fallback, message) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := j.DB.ExecContext(ctx, query, sessionID, stepID, req.Question, req.Answer, v.Pass, v.Fallback, v.Message)
	return err
}

// Events returns a session's events in the order they happened.
func (j *Journal) Events(ctx context.Context, sessionID string) ([]Event, error) {
	query := `SELECT step_id, kind, detail, CAST(strftime('%s', ts) AS INTEGER) FROM events WHERE session_id = ? ORDER BY id`
	rows, err := j.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var unix int64
		if err := rows.Scan(&e.StepID, &e.Kind, &e.Detail, &unix); err != nil {
			return nil, err
		}
		e.At = time.Unix(unix, 0).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (j *Journal) Grades(ctx context.Context, sessionID string) ([]Grade, error) {
	query := `SELECT step_id, question, answer, pass, fallback, message FROM grades WHERE session_id = ? ORDER BY id`
	rows, err := j.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []Grade
	for rows.Next() {
		var g Grade
		if err := rows.Scan(&g.StepID, &g.Question, &g.Answer, &g.Pass, &g.Fallback, &g.Message); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

// Completions counts finished play-throughs per lesson.
func (j *Journal) Completions(ctx context.Context) (map[string]int, error) {
	query := `SELECT lesson, COUNT(*) FROM sessions WHERE completed = 1 GROUP BY lesson`
	rows, err := j.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var lesson string
		var n int
		if err := rows.Scan(&lesson, &n); err != nil {
			return nil, err
		}
		counts[lesson] = n
	}
	return counts, rows.Err()
}
