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
	"fmt"

	"github.com/promptwire/promptd/internal/config"
)

// NewStore creates a PromptStore based on the provided configuration
func NewStore(cfg config.StorageConfig) (PromptStore, error) {
	switch cfg.Type {
	case "", "memory":
		// An unset type means the in-memory default, matching config validation.
		return NewMemoryStore(), nil
	case "database":
		if cfg.Database == nil {
			return nil, fmt.Errorf("database storage selected but no database configuration provided")
		}
		return NewDatabaseStore(*cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
