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
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/alugaai/pricer/base/log"
	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// JSONL appends entries to a file, one JSON document per line.
type JSONL struct {
	path string
	mu   sync.Mutex
}

func NewJSONL(path string) *JSONL {
	return &JSONL{path: path}
}

func (j *JSONL) Append(entries []Entry) error {
	var buf bytes.Buffer
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return errors.Trace(err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(j.path), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	file, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}

// Last scans the whole file. Lines that fail to decode are skipped.
func (j *JSONL) Last(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	file, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	ring := make([]Entry, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err = json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			log.Logger().Warn("skip malformed audit entry", zap.String("path", j.path), zap.Error(err))
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, entry)
	}
	return ring, errors.Trace(scanner.Err())
}

func (j *JSONL) Close() error {
	return nil
}
