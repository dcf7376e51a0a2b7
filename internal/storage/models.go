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
	"encoding/json"
	"time"

	"github.com/promptwire/promptd/internal/types"
	"github.com/promptwire/promptd/internal/version"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	pduuid "github.com/promptwire/promptd/pkg/uuid"
)

// SurrogateKey is the store-assigned primary key of a prompt record.
// It is a distinct type so that a mutation call addressed by the
// natural key is a compile error rather than a runtime store rejection.
type SurrogateKey string

// PromptRow is the persistent form of one prompt version. The natural
// key (PromptID, Version) is unique but is not the primary key.
type PromptRow struct {
	SurrogateKey SurrogateKey   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PromptID     string         `gorm:"size:255;not null;uniqueIndex:idx_prompts_natural_key" json:"prompt_id"`
	Version      int            `gorm:"not null;uniqueIndex:idx_prompts_natural_key" json:"version"`
	Params       datatypes.JSON `gorm:"type:jsonb" json:"params,omitempty"`
	Info         datatypes.JSON `gorm:"type:jsonb" json:"info,omitempty"`
	CreatedAt    time.Time      `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"type:timestamptz;not null" json:"updated_at"`
}

// TableName specify table name
func (PromptRow) TableName() string {
	return "prompts"
}

// BeforeCreate hook before creation
func (p *PromptRow) BeforeCreate(tx *gorm.DB) error {
	if p.SurrogateKey == "" {
		key, err := pduuid.GenerateV7()
		if err != nil {
			return err
		}
		p.SurrogateKey = SurrogateKey(key)
	}
	return nil
}

// VersionedID returns the fully versioned identifier of the row
func (p *PromptRow) VersionedID() string {
	v := p.Version
	return version.Construct(p.PromptID, &v)
}

// ToSpec converts the row to the registry's cached record form. The
// surrogate key is intentionally dropped: the cache addresses records
// by versioned identifier only.
func (p *PromptRow) ToSpec() *types.PromptSpec {
	return &types.PromptSpec{
		PromptID: p.VersionedID(),
		BaseID:   p.PromptID,
		Version:  p.Version,
		Params:   json.RawMessage(p.Params),
		Info:     json.RawMessage(p.Info),
	}
}
