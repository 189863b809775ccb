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

package storage

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/schema"
)

func TestAppendURLParams(t *testing.T) {
	url, err := AppendURLParams("sqlite://data/pricer.db", []lo.Tuple2[string, string]{{"_pragma", "busy_timeout(10000)"}})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite://data/pricer.db?_pragma=busy_timeout%2810000%29", url)
	url, err = AppendURLParams(`sqlite.db`, []lo.Tuple2[string, string]{{"a", "b"}})
	assert.NoError(t, err)
	assert.Equal(t, `sqlite.db?a=b`, url)
}

func TestAppendMySQLParams(t *testing.T) {
	dsn, err := AppendMySQLParams("pricer:secret@tcp(localhost:3306)/pricer?sql_mode=ANSI",
		map[string]string{"sql_mode": "TRADITIONAL", "charset": "utf8mb4"})
	assert.NoError(t, err)
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "sql_mode=ANSI")
	assert.NotContains(t, dsn, "TRADITIONAL")
	_, err = AppendMySQLParams("pricer:secret@tcp(localhost:3306", nil)
	assert.Error(t, err)
}

func TestNewGORMConfig(t *testing.T) {
	cfg := NewGORMConfig("pricer_")
	strategy, ok := cfg.NamingStrategy.(schema.NamingStrategy)
	assert.True(t, ok)
	assert.Equal(t, "pricer_favorite", strategy.TableName("Favorite"))
	assert.True(t, cfg.SkipDefaultTransaction)
}
