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

package dataset

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// EnvRawDataset overrides the location of raw listings.
const EnvRawDataset = "PRICER_RAW_DATASET"

// Loader reads raw listings once and serves flattened rows.
type Loader struct {
	path        string
	searchPaths []string
	workDir     string

	once    sync.Once
	records []ListingRecord
	err     error
}

// NewLoader creates a loader from the dataset configuration.
func NewLoader(cfg config.DatasetConfig) *Loader {
	workDir, _ := os.Getwd()
	return &Loader{
		path:        cfg.RawPath,
		searchPaths: cfg.SearchPaths,
		workDir:     workDir,
	}
}

// NewFileLoader creates a loader reading a single file.
func NewFileLoader(path string) *Loader {
	return &Loader{path: path}
}

// Resolve locates the raw listings file: the configured path first, then the
// environment variable, then every search path relative to the working
// directory and each of its parents.
func (l *Loader) Resolve() (string, error) {
	if fileExists(l.path) {
		return l.path, nil
	}
	if path := os.Getenv(EnvRawDataset); fileExists(path) {
		return path, nil
	}
	if l.workDir != "" {
		dir := l.workDir
		for {
			for _, searchPath := range l.searchPaths {
				candidate := filepath.Join(dir, searchPath)
				if fileExists(candidate) {
					return candidate, nil
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return "", base.Errorf(base.ErrDataUnavailable,
		"cannot locate raw listings: set %s or dataset.raw_path", EnvRawDataset)
}

// Records returns raw listings. The file is read at most once.
func (l *Loader) Records() ([]ListingRecord, error) {
	l.once.Do(func() {
		var path string
		if path, l.err = l.Resolve(); l.err != nil {
			return
		}
		var data []byte
		if data, l.err = os.ReadFile(path); l.err != nil {
			l.err = base.Wrapf(l.err, base.ErrDataUnavailable, "read raw listings")
			return
		}
		if l.err = json.Unmarshal(data, &l.records); l.err != nil {
			l.err = base.Wrapf(l.err, base.ErrDataUnavailable, "decode raw listings %s", path)
			return
		}
		log.Logger().Info("load raw listings", zap.String("path", path), zap.Int("n_records", len(l.records)))
	})
	return l.records, errors.Trace(l.err)
}

// Load returns flattened rows. Row ids start from 1 in file order.
func (l *Loader) Load() ([]FeatureRow, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	rows := make([]FeatureRow, len(records))
	for i, record := range records {
		rows[i] = Flatten(i+1, record)
	}
	return rows, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
