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
	"strings"
	"time"

	"github.com/alugaai/pricer/storage"
	"github.com/samber/lo"
)

// Entry is an audited prediction.
type Entry struct {
	Timestamp time.Time          `json:"timestamp"`
	Method    string             `json:"method"`
	Price     float64            `json:"price"`
	Features  map[string]any     `json:"features"`
	Details   map[string]float64 `json:"details,omitempty"`
}

// Since keeps entries recorded at or after t.
func Since(entries []Entry, t time.Time) []Entry {
	return lo.Filter(entries, func(entry Entry, _ int) bool {
		return !entry.Timestamp.Before(t)
	})
}

// Backend persists entries.
type Backend interface {
	Append(entries []Entry) error
	// Last returns the n most recent entries, oldest first.
	Last(n int) ([]Entry, error)
	Close() error
}

// Open a backend: sqlite://path for a SQLite table, otherwise a JSON lines file.
func Open(path string) (Backend, error) {
	if strings.HasPrefix(path, storage.SQLitePrefix) {
		return NewSQLite(path)
	}
	return NewJSONL(path), nil
}
