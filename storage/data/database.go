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

package data

import (
	"context"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/alugaai/pricer/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	ErrPropertyNotExist = errors.NotFoundf("property")
	ErrNoDatabase       = errors.NotAssignedf("database")
)

// Property is a rental listing.
type Property struct {
	ID           int64 `gorm:"primaryKey;autoIncrement:false"`
	OwnerID      string
	Title        string
	PropertyType string
	City         string `gorm:"index"`
	Neighborhood string
	AreaM2       float64
	Bedrooms     int
	Bathrooms    int
	ParkingSpots int
	CondoFee     float64
	PropertyTax  float64
	NightlyPrice float64
	Amenities    []string `gorm:"serializer:json"`
	Active       bool     `gorm:"index"`
	CreatedAt    time.Time
}

// Favorite marks a property as liked by a user.
type Favorite struct {
	UserID     string `gorm:"primaryKey"`
	PropertyID int64  `gorm:"primaryKey"`
	CreatedAt  time.Time
}

// Recommendation is a persisted recommendation of a property to a user.
type Recommendation struct {
	ID             string `gorm:"primaryKey"`
	UserID         string `gorm:"index:idx_user_source"`
	Source         string `gorm:"index:idx_user_source"`
	PropertyID     int64
	Score          float64
	PredictedPrice float64
	GeneratedAt    time.Time
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertProperties(ctx context.Context, properties []Property) error
	GetProperty(ctx context.Context, id int64) (Property, error)
	// GetActiveProperties returns at most n active properties ordered by id. All of them if n <= 0.
	GetActiveProperties(ctx context.Context, n int) ([]Property, error)
	AddFavorite(ctx context.Context, userID string, propertyID int64) error
	GetFavoriteProperties(ctx context.Context, userID string) ([]Property, error)
	// ReplaceRecommendations replaces all recommendations of a user from a source.
	ReplaceRecommendations(ctx context.Context, userID, source string, recommendations []Recommendation) error
	// GetRecommendations returns recommendations of a user from a source, best first.
	GetRecommendations(ctx context.Context, userID, source string) ([]Recommendation, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if path == "" {
		return NoDatabase{}, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
