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
	"sync"

	"github.com/alugaai/pricer/base/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const maxBatchSize = 64

var (
	DroppedEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "audit",
		Name:      "dropped_entries_total",
	})
	FailedWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "audit",
		Name:      "failed_writes_total",
	})
)

// Recorder writes entries to a backend on a background goroutine. Record never
// blocks: entries are dropped when the buffer is full, and backend failures are
// logged but never returned to the caller.
type Recorder struct {
	backend Backend
	entries chan Entry
	dropped atomic.Int64
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

func NewRecorder(backend Backend, bufferSize int) *Recorder {
	r := &Recorder{
		backend: backend,
		entries: make(chan Entry, max(bufferSize, 1)),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an entry. It returns false if the entry was dropped.
func (r *Recorder) Record(entry Entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop()
		return false
	}
	select {
	case r.entries <- entry:
		return true
	default:
		r.drop()
		return false
	}
}

func (r *Recorder) drop() {
	r.dropped.Inc()
	DroppedEntriesTotal.Inc()
}

// Dropped returns the number of dropped entries.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Last returns the n most recent persisted entries, oldest first.
func (r *Recorder) Last(n int) ([]Entry, error) {
	return r.backend.Last(n)
}

// Close flushes buffered entries and closes the backend.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()
	<-r.done
	return r.backend.Close()
}

func (r *Recorder) run() {
	defer close(r.done)
	batch := make([]Entry, 0, maxBatchSize)
	for entry := range r.entries {
		batch = append(batch[:0], entry)
	collect:
		for len(batch) < maxBatchSize {
			select {
			case next, ok := <-r.entries:
				if !ok {
					break collect
				}
				batch = append(batch, next)
			default:
				break collect
			}
		}
		if err := r.backend.Append(batch); err != nil {
			FailedWritesTotal.Inc()
			log.Logger().Error("failed to write audit entries", zap.Int("n", len(batch)), zap.Error(err))
		}
	}
}
