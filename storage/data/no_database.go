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

import "context"

// NoDatabase is used when no data store is configured. Every operation fails with ErrNoDatabase.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertProperties(_ context.Context, _ []Property) error {
	return ErrNoDatabase
}

func (NoDatabase) GetProperty(_ context.Context, _ int64) (Property, error) {
	return Property{}, ErrNoDatabase
}

func (NoDatabase) GetActiveProperties(_ context.Context, _ int) ([]Property, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) AddFavorite(_ context.Context, _ string, _ int64) error {
	return ErrNoDatabase
}

func (NoDatabase) GetFavoriteProperties(_ context.Context, _ string) ([]Property, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) ReplaceRecommendations(_ context.Context, _, _ string, _ []Recommendation) error {
	return ErrNoDatabase
}

func (NoDatabase) GetRecommendations(_ context.Context, _, _ string) ([]Recommendation, error) {
	return nil, ErrNoDatabase
}
