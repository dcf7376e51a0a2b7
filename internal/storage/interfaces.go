/*
 * Copyright 2025 The Promptwire Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"context"

	"gorm.io/datatypes"
)

// PromptStore is the persistent-store collaborator for the prompt
// registry. Lookups address records by their natural key (base id,
// version); mutations address them exclusively by the store-assigned
// surrogate key read back from a prior FindOne. The split exists
// because the store's mutation API is defined over its primary key and
// rejects natural-key filters.
type PromptStore interface {
	// LoadAll returns every prompt record; used once at registry
	// initialization and again on explicit reloads.
	LoadAll(ctx context.Context) ([]*PromptRow, error)

	// FindOne returns the record matching the natural key, or nil
	// (with a nil error) when no such record exists.
	FindOne(ctx context.Context, baseID string, ver int) (*PromptRow, error)

	// Create inserts a new record. The caller assigns the surrogate
	// key for memory stores; database stores may override it.
	Create(ctx context.Context, row *PromptRow) error

	// Update rewrites the params/info columns of the record addressed
	// by key and returns the fresh row. Nil columns are left unchanged.
	Update(ctx context.Context, key SurrogateKey, params, info datatypes.JSON) (*PromptRow, error)

	// Delete removes the record addressed by key.
	Delete(ctx context.Context, key SurrogateKey) error

	// Maintenance operations
	HealthCheck(ctx context.Context) error
	Close() error
}
