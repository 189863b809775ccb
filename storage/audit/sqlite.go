// Copyright 2026 pricer Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/alugaai/pricer/storage"
	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/samber/lo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	_ "modernc.org/sqlite"
)

// SQLite stores entries in the predictions table of a SQLite database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	name := path[len(storage.SQLitePrefix):]
	if err := os.MkdirAll(filepath.Dir(name), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	dsn, err := storage.AppendURLParams(name, []lo.Tuple2[string, string]{
		{"_pragma", "busy_timeout(10000)"},
		{"_pragma", "journal_mode(wal)"},
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
		otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
	)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err = db.Exec(`
CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT,
	method TEXT,
	price REAL,
	features TEXT,
	details TEXT
);`); err != nil {
		_ = db.Close()
		return nil, errors.Trace(err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Trace(err)
	}
	for _, entry := range entries {
		features, err := json.Marshal(entry.Features)
		if err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
		details, err := json.Marshal(entry.Details)
		if err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
		if _, err = tx.Exec(`
INSERT INTO predictions (timestamp, method, price, features, details) VALUES (?, ?, ?, ?, ?)
`, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Method, entry.Price, string(features), string(details)); err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
	}
	return errors.Trace(tx.Commit())
}

func (s *SQLite) Last(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rs, err := s.db.Query(`
SELECT timestamp, method, price, features, details FROM predictions ORDER BY id DESC LIMIT ?
`, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var entries []Entry
	for rs.Next() {
		var (
			entry             Entry
			timestamp         string
			features, details string
		)
		if err = rs.Scan(&timestamp, &entry.Method, &entry.Price, &features, &details); err != nil {
			return nil, errors.Trace(err)
		}
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, errors.Trace(err)
		}
		if err = json.Unmarshal([]byte(features), &entry.Features); err != nil {
			return nil, errors.Trace(err)
		}
		if err = json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return nil, errors.Trace(err)
		}
		entries = append(entries, entry)
	}
	if err = rs.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
