// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bench

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_time TEXT NOT NULL,
	num_cpu      INTEGER NOT NULL,
	cpu_model    TEXT,
	cpu_mhz      REAL,
	go_arch      TEXT,
	total_memory INTEGER
);
CREATE TABLE IF NOT EXISTS measurements (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     INTEGER NOT NULL REFERENCES sessions(id),
	implementation TEXT NOT NULL,
	iteration      INTEGER NOT NULL,
	produced       INTEGER NOT NULL,
	consumed       INTEGER NOT NULL,
	duration       TEXT NOT NULL,
	elapsed        TEXT NOT NULL,
	throughput     REAL NOT NULL,
	timestamp      INTEGER NOT NULL,
	go_version     TEXT
);
CREATE INDEX IF NOT EXISTS idx_measurements_session
	ON measurements(session_id);
`

// Store keeps benchmark sessions in a SQLite database so runs on the
// same host can be compared over time.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the session database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("bench: open store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bench: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession records a complete session and returns its row id.
func (s *Store) SaveSession(sess *Session) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("bench: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO sessions (session_time, num_cpu, cpu_model, cpu_mhz, go_arch, total_memory)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.SessionTime, sess.SystemInfo.NumCPU, sess.SystemInfo.CPUModel,
		sess.SystemInfo.CPUSpeedMHz, sess.SystemInfo.GOARCH, sess.SystemInfo.TotalMemory,
	)
	if err != nil {
		return 0, fmt.Errorf("bench: insert session: %w", err)
	}
	sessionID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("bench: session id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO measurements
		 (session_id, implementation, iteration, produced, consumed, duration, elapsed, throughput, timestamp, go_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("bench: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range sess.Benchmarks {
		if _, err := stmt.Exec(
			sessionID, m.Implementation, m.Iteration, m.Produced, m.Consumed,
			m.Duration, m.Elapsed, m.Throughput, m.Timestamp, m.GoVersion,
		); err != nil {
			return 0, fmt.Errorf("bench: insert measurement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("bench: commit: %w", err)
	}
	return sessionID, nil
}

// Sessions loads the most recent limit sessions, newest first, each
// with its measurements.
func (s *Store) Sessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, session_time, num_cpu, cpu_model, cpu_mhz, go_arch, total_memory
		 FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("bench: query sessions: %w", err)
	}
	defer rows.Close()

	type loaded struct {
		id   int64
		sess Session
	}
	var out []loaded
	for rows.Next() {
		var l loaded
		if err := rows.Scan(
			&l.id, &l.sess.SessionTime, &l.sess.SystemInfo.NumCPU,
			&l.sess.SystemInfo.CPUModel, &l.sess.SystemInfo.CPUSpeedMHz,
			&l.sess.SystemInfo.GOARCH, &l.sess.SystemInfo.TotalMemory,
		); err != nil {
			return nil, fmt.Errorf("bench: scan session: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bench: sessions: %w", err)
	}

	for i := range out {
		ms, err := s.measurements(out[i].id)
		if err != nil {
			return nil, err
		}
		out[i].sess.Benchmarks = ms
	}

	sessions := make([]Session, len(out))
	for i, l := range out {
		sessions[i] = l.sess
	}
	return sessions, nil
}

func (s *Store) measurements(sessionID int64) ([]Measurement, error) {
	rows, err := s.db.Query(
		`SELECT implementation, iteration, produced, consumed, duration, elapsed, throughput, timestamp, go_version
		 FROM measurements WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("bench: query measurements: %w", err)
	}
	defer rows.Close()

	var ms []Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(
			&m.Implementation, &m.Iteration, &m.Produced, &m.Consumed,
			&m.Duration, &m.Elapsed, &m.Throughput, &m.Timestamp, &m.GoVersion,
		); err != nil {
			return nil, fmt.Errorf("bench: scan measurement: %w", err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bench: measurements: %w", err)
	}
	return ms, nil
}

// BestThroughput returns the highest recorded throughput per
// implementation across all stored sessions.
func (s *Store) BestThroughput() (map[string]float64, error) {
	rows, err := s.db.Query(
		`SELECT implementation, MAX(throughput) FROM measurements GROUP BY implementation`)
	if err != nil {
		return nil, fmt.Errorf("bench: query best: %w", err)
	}
	defer rows.Close()

	best := make(map[string]float64)
	for rows.Next() {
		var impl string
		var tp float64
		if err := rows.Scan(&impl, &tp); err != nil {
			return nil, fmt.Errorf("bench: scan best: %w", err)
		}
		best[impl] = tp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bench: best: %w", err)
	}
	return best, nil
}
