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
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase stores listings, favorites and recommendations in a relational database.
type SQLDatabase struct {
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init creates tables if not exist.
func (d *SQLDatabase) Init() error {
	tx := d.gormDB
	if d.driver == MySQL {
		tx = tx.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	return errors.Trace(tx.AutoMigrate(&Property{}, &Favorite{}, &Recommendation{}))
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge deletes all rows.
func (d *SQLDatabase) Purge() error {
	tx := d.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&Recommendation{}, &Favorite{}, &Property{}} {
		if err := tx.Delete(model).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertProperties inserts properties, overwriting existing ones with the same id.
func (d *SQLDatabase) BatchInsertProperties(ctx context.Context, properties []Property) error {
	if len(properties) == 0 {
		return nil
	}
	for i := range properties {
		if properties[i].CreatedAt.IsZero() {
			properties[i].CreatedAt = time.Now().UTC()
		}
	}
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&properties).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetProperty(ctx context.Context, id int64) (Property, error) {
	var properties []Property
	if err := d.gormDB.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&properties).Error; err != nil {
		return Property{}, errors.Trace(err)
	}
	if len(properties) == 0 {
		return Property{}, errors.Annotatef(ErrPropertyNotExist, "%d", id)
	}
	return properties[0], nil
}

func (d *SQLDatabase) GetActiveProperties(ctx context.Context, n int) ([]Property, error) {
	var properties []Property
	tx := d.gormDB.WithContext(ctx).Where("active = ?", true).Order("id")
	if n > 0 {
		tx = tx.Limit(n)
	}
	if err := tx.Find(&properties).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return properties, nil
}

// AddFavorite adds a property to favorites of a user. Adding twice is a no-op.
func (d *SQLDatabase) AddFavorite(ctx context.Context, userID string, propertyID int64) error {
	if _, err := d.GetProperty(ctx, propertyID); err != nil {
		return err
	}
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Favorite{UserID: userID, PropertyID: propertyID, CreatedAt: time.Now().UTC()}).Error
	return errors.Trace(err)
}

// GetFavoriteProperties returns the properties favorited by a user in the order they were favorited.
func (d *SQLDatabase) GetFavoriteProperties(ctx context.Context, userID string) ([]Property, error) {
	var favorites []Favorite
	if err := d.gormDB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, property_id").
		Find(&favorites).Error; err != nil {
		return nil, errors.Trace(err)
	}
	if len(favorites) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(favorites))
	for i, favorite := range favorites {
		ids[i] = favorite.PropertyID
	}
	var properties []Property
	if err := d.gormDB.WithContext(ctx).Where("id IN ?", ids).Find(&properties).Error; err != nil {
		return nil, errors.Trace(err)
	}
	index := make(map[int64]Property, len(properties))
	for _, property := range properties {
		index[property.ID] = property
	}
	result := make([]Property, 0, len(properties))
	for _, id := range ids {
		if property, ok := index[id]; ok {
			result = append(result, property)
		}
	}
	return result, nil
}

func (d *SQLDatabase) ReplaceRecommendations(ctx context.Context, userID, source string, recommendations []Recommendation) error {
	return d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND source = ?", userID, source).Delete(&Recommendation{}).Error; err != nil {
			return errors.Trace(err)
		}
		if len(recommendations) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range recommendations {
			recommendations[i].UserID = userID
			recommendations[i].Source = source
			if recommendations[i].ID == "" {
				recommendations[i].ID = uuid.NewString()
			}
			if recommendations[i].GeneratedAt.IsZero() {
				recommendations[i].GeneratedAt = now
			}
		}
		return errors.Trace(tx.Create(&recommendations).Error)
	})
}

func (d *SQLDatabase) GetRecommendations(ctx context.Context, userID, source string) ([]Recommendation, error) {
	var recommendations []Recommendation
	if err := d.gormDB.WithContext(ctx).
		Where("user_id = ? AND source = ?", userID, source).
		Order("score DESC, property_id").
		Find(&recommendations).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return recommendations, nil
}
