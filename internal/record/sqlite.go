package record

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"avstress/internal/scoring"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    participant TEXT NOT NULL,
    seed        TEXT NOT NULL,
    started_ns  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trials (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT REFERENCES sessions(id),
    participant TEXT NOT NULL,
    block       INTEGER NOT NULL,
    trial       INTEGER NOT NULL,
    type        TEXT NOT NULL,
    visual      TEXT,
    audio       TEXT,
    response    TEXT,
    rt_seconds  REAL,
    correct     TEXT NOT NULL,
    iti_seconds REAL NOT NULL,
    recorded_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trials_participant ON trials(participant, block, trial);
`

// SQLiteSink mirrors trial rows into a SQLite database, one transaction
// per row.
type SQLiteSink struct {
	db        *sql.DB
	sessionID sql.NullString
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// BeginSession records a session and tags every later row with its id.
func (s *SQLiteSink) BeginSession(id, participant, seed string, started time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, participant, seed, started_ns) VALUES (?, ?, ?, ?)`,
		id, participant, seed, started.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	s.sessionID = sql.NullString{String: id, Valid: true}
	return nil
}

// Exists implements Sink. The schema is the header, so a SQLite sink always
// exists once open.
func (s *SQLiteSink) Exists() bool {
	return true
}

// WriteHeader implements Sink.
func (s *SQLiteSink) WriteHeader() error {
	return nil
}

// Append implements Sink.
func (s *SQLiteSink) Append(r Result) error {
	var rt sql.NullFloat64
	if r.Responded {
		rt = sql.NullFloat64{Float64: r.RT.Seconds(), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO trials (session_id, participant, block, trial, type, visual, audio, response, rt_seconds, correct, iti_seconds, recorded_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.sessionID, r.Participant, r.Block, r.Trial, r.Type.String(),
		nullString(labelOrEmpty(r.Visual)), nullString(r.Audio), nullString(r.Response),
		rt, r.Correct.String(), r.ITI, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}
	return nil
}

// Trials returns every row for participant in insertion order.
func (s *SQLiteSink) Trials(participant string) ([]Result, error) {
	rows, err := s.db.Query(`
		SELECT participant, block, trial, type, visual, audio, response, rt_seconds, correct, iti_seconds
		FROM trials WHERE participant = ? ORDER BY id`, participant)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r                       Result
			typ, correct            string
			visual, audio, response sql.NullString
			rt                      sql.NullFloat64
		)
		if err := rows.Scan(&r.Participant, &r.Block, &r.Trial, &typ, &visual, &audio, &response, &rt, &correct, &r.ITI); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		if r.Type, err = trial.ParseType(typ); err != nil {
			return nil, err
		}
		if r.Visual, err = stimulus.ParseColorLabel(visual.String); err != nil {
			return nil, err
		}
		if r.Correct, err = scoring.ParseVerdict(correct); err != nil {
			return nil, err
		}
		r.Audio = audio.String
		r.Response = response.String
		if rt.Valid {
			r.Responded = true
			r.RT = time.Duration(math.Round(rt.Float64 * float64(time.Second)))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func labelOrEmpty(l stimulus.ColorLabel) string {
	if !l.Valid() {
		return ""
	}
	return l.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
