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
	"errors"
	"fmt"
	"time"

	"github.com/promptwire/promptd/internal/config"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DatabaseStore implements PromptStore against Postgres
type DatabaseStore struct {
	config config.DatabaseStorageConfig
	db     *gorm.DB
}

// NewDatabaseStore creates a new database store instance. If dbOverride is non-nil, it is used (for testing).
func NewDatabaseStore(cfg config.DatabaseStorageConfig, dbOverride ...*gorm.DB) (*DatabaseStore, error) {
	var db *gorm.DB
	var err error
	if len(dbOverride) > 0 && dbOverride[0] != nil {
		db = dbOverride[0]
	} else {
		db, err = gorm.Open(
			postgres.New(postgres.Config{
				DriverName: cfg.Driver,
				DSN:        cfg.ConnectionString,
			}),
			&gorm.Config{},
		)
		if err != nil {
			return nil, err
		}

		// Set connection pool settings
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if cfg.MaxConnections > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConnections)
		}
		if cfg.MaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Second)
		}
	}
	return &DatabaseStore{
		config: cfg,
		db:     db,
	}, nil
}

// LoadAll returns every prompt record in the store
func (ds *DatabaseStore) LoadAll(ctx context.Context) ([]*PromptRow, error) {
	var rows []*PromptRow
	if err := ds.db.WithContext(ctx).
		Order("prompt_id, version").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	return rows, nil
}

// FindOne returns the record matching the natural key, or nil when absent
func (ds *DatabaseStore) FindOne(ctx context.Context, baseID string, ver int) (*PromptRow, error) {
	if baseID == "" {
		return nil, fmt.Errorf("base ID cannot be empty")
	}

	var row PromptRow
	err := ds.db.WithContext(ctx).
		Where("prompt_id = ? AND version = ?", baseID, ver).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find prompt %s.v%d: %w", baseID, ver, err)
	}

	return &row, nil
}

// Create inserts a new prompt record
func (ds *DatabaseStore) Create(ctx context.Context, row *PromptRow) error {
	if row == nil {
		return fmt.Errorf("prompt row cannot be nil")
	}
	if row.PromptID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}

	if err := ds.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create prompt %s.v%d: %w", row.PromptID, row.Version, err)
	}
	return nil
}

// Update rewrites params/info of the record addressed by the surrogate
// key and returns the fresh row. The natural key is never used as a
// mutation filter.
func (ds *DatabaseStore) Update(ctx context.Context, key SurrogateKey, params, info datatypes.JSON) (*PromptRow, error) {
	if key == "" {
		return nil, fmt.Errorf("surrogate key cannot be empty")
	}

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if params != nil {
		updates["params"] = params
	}
	if info != nil {
		updates["info"] = info
	}

	result := ds.db.WithContext(ctx).
		Model(&PromptRow{}).
		Where("id = ?", string(key)).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update prompt %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("prompt record not found: %s", key)
	}

	var row PromptRow
	if err := ds.db.WithContext(ctx).
		Where("id = ?", string(key)).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to read back updated prompt %s: %w", key, err)
	}
	return &row, nil
}

// Delete removes the record addressed by the surrogate key
func (ds *DatabaseStore) Delete(ctx context.Context, key SurrogateKey) error {
	if key == "" {
		return fmt.Errorf("surrogate key cannot be empty")
	}

	result := ds.db.WithContext(ctx).
		Where("id = ?", string(key)).
		Delete(&PromptRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete prompt %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("prompt record not found: %s", key)
	}
	return nil
}

// HealthCheck verifies database connectivity
func (ds *DatabaseStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection
func (ds *DatabaseStore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
