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
	"fmt"
	"sync"
	"time"

	"github.com/promptwire/promptd/pkg/uuid"

	"gorm.io/datatypes"
)

// MemoryStore implements PromptStore with in-memory storage,
// for testing and single-node deployments without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[SurrogateKey]*PromptRow
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[SurrogateKey]*PromptRow),
	}
}

func (ms *MemoryStore) LoadAll(ctx context.Context) ([]*PromptRow, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rows := make([]*PromptRow, 0, len(ms.rows))
	for _, row := range ms.rows {
		copied := *row
		rows = append(rows, &copied)
	}
	return rows, nil
}

func (ms *MemoryStore) FindOne(ctx context.Context, baseID string, ver int) (*PromptRow, error) {
	if baseID == "" {
		return nil, fmt.Errorf("base ID cannot be empty")
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, row := range ms.rows {
		if row.PromptID == baseID && row.Version == ver {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (ms *MemoryStore) Create(ctx context.Context, row *PromptRow) error {
	if row == nil {
		return fmt.Errorf("prompt row cannot be nil")
	}
	if row.PromptID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, existing := range ms.rows {
		if existing.PromptID == row.PromptID && existing.Version == row.Version {
			return fmt.Errorf("prompt %s.v%d already exists", row.PromptID, row.Version)
		}
	}

	if row.SurrogateKey == "" {
		key, err := uuid.GenerateV7()
		if err != nil {
			return fmt.Errorf("failed to generate record key: %w", err)
		}
		row.SurrogateKey = SurrogateKey(key)
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	copied := *row
	ms.rows[row.SurrogateKey] = &copied
	return nil
}

func (ms *MemoryStore) Update(ctx context.Context, key SurrogateKey, params, info datatypes.JSON) (*PromptRow, error) {
	if key == "" {
		return nil, fmt.Errorf("surrogate key cannot be empty")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	row, exists := ms.rows[key]
	if !exists {
		return nil, fmt.Errorf("prompt record not found: %s", key)
	}

	if params != nil {
		row.Params = params
	}
	if info != nil {
		row.Info = info
	}
	row.UpdatedAt = time.Now().UTC()

	copied := *row
	return &copied, nil
}

func (ms *MemoryStore) Delete(ctx context.Context, key SurrogateKey) error {
	if key == "" {
		return fmt.Errorf("surrogate key cannot be empty")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.rows[key]; !exists {
		return fmt.Errorf("prompt record not found: %s", key)
	}
	delete(ms.rows, key)
	return nil
}

func (ms *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.rows = make(map[SurrogateKey]*PromptRow)
	return nil
}
