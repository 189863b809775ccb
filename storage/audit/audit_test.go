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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(i int) Entry {
	return Entry{
		Timestamp: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		Method:    "baseline",
		Price:     float64(1000 + i),
		Features:  map[string]any{"area_m2": float64(50 + i), "address_city": "Recife"},
	}
}

func testBackend(t *testing.T, backend Backend) {
	entries, err := backend.Last(5)
	assert.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, backend.Append([]Entry{newEntry(1), newEntry(2)}))
	ml := newEntry(3)
	ml.Method = "ml"
	ml.Details = map[string]float64{"std_pred": 12.5}
	require.NoError(t, backend.Append([]Entry{ml}))

	entries, err = backend.Last(2)
	assert.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1002.0, entries[0].Price)
	assert.Equal(t, 1003.0, entries[1].Price)
	assert.Equal(t, "ml", entries[1].Method)
	assert.Equal(t, map[string]float64{"std_pred": 12.5}, entries[1].Details)
	assert.Equal(t, "Recife", entries[1].Features["address_city"])
	assert.True(t, ml.Timestamp.Equal(entries[1].Timestamp))

	entries, err = backend.Last(10)
	assert.NoError(t, err)
	assert.Len(t, entries, 3)
	entries, err = backend.Last(0)
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, backend.Close())
}

func TestJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "predictions.log")
	backend, err := Open(path)
	require.NoError(t, err)
	assert.IsType(t, &JSONL{}, backend)
	testBackend(t, backend)

	// malformed lines are skipped
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = file.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())
	entries, err := backend.Last(10)
	assert.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSQLite(t *testing.T) {
	backend, err := Open("sqlite://" + filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, backend)
	testBackend(t, backend)
}

type memoryBackend struct {
	mu      sync.Mutex
	entries []Entry
	entered chan struct{}
	release chan struct{}
	err     error
}

func (m *memoryBackend) Append(entries []Entry) error {
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memoryBackend) Last(n int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	return m.entries[len(m.entries)-n:], nil
}

func (m *memoryBackend) Close() error {
	return nil
}

func TestRecorder(t *testing.T) {
	backend := &memoryBackend{}
	recorder := NewRecorder(backend, 16)
	for i := 0; i < 10; i++ {
		assert.True(t, recorder.Record(newEntry(i)))
	}
	assert.NoError(t, recorder.Close())
	entries, err := recorder.Last(20)
	assert.NoError(t, err)
	assert.Len(t, entries, 10)
	assert.Equal(t, 1009.0, entries[9].Price)
	assert.Zero(t, recorder.Dropped())

	// closed recorder drops
	assert.False(t, recorder.Record(newEntry(10)))
	assert.Equal(t, int64(1), recorder.Dropped())
	assert.NoError(t, recorder.Close())
}

func TestRecorderFullBuffer(t *testing.T) {
	backend := &memoryBackend{entered: make(chan struct{}), release: make(chan struct{})}
	recorder := NewRecorder(backend, 1)
	assert.True(t, recorder.Record(newEntry(1)))
	<-backend.entered
	assert.True(t, recorder.Record(newEntry(2)))
	assert.False(t, recorder.Record(newEntry(3)))
	assert.False(t, recorder.Record(newEntry(4)))
	assert.Equal(t, int64(2), recorder.Dropped())
	go func() {
		for range backend.entered {
		}
	}()
	close(backend.release)
	assert.NoError(t, recorder.Close())
	close(backend.entered)
	entries, err := recorder.Last(10)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecorderBackendFailure(t *testing.T) {
	backend := &memoryBackend{err: errors.New("disk full")}
	recorder := NewRecorder(backend, 4)
	assert.True(t, recorder.Record(newEntry(1)))
	assert.NoError(t, recorder.Close())
	entries, err := recorder.Last(10)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSince(t *testing.T) {
	entries := []Entry{newEntry(1), newEntry(2), newEntry(3)}
	since := Since(entries, newEntry(2).Timestamp)
	require.Len(t, since, 2)
	assert.Equal(t, 1002.0, since[0].Price)
	assert.Empty(t, Since(entries, newEntry(4).Timestamp))
}
