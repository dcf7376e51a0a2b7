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

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PromptSpec is one immutable version of a prompt as held by the
// in-memory registry. PromptID is the fully versioned identifier
// ("jack.v3"); BaseID and Version are its parsed natural key. Params
// and Info are opaque to the registry; their interpretation belongs to
// the prompt integration consuming them.
//
// The persistent store holds a second copy of each record under a
// store-assigned surrogate key. That key is never cached here: the
// registry addresses records exclusively by versioned identifier.
type PromptSpec struct {
	PromptID string          `json:"prompt_id"`
	BaseID   string          `json:"base_id"`
	Version  int             `json:"version"`
	Params   json.RawMessage `json:"params,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

// Validate checks the structural invariants of a prompt record.
func (p *PromptSpec) Validate() error {
	if p.PromptID == "" {
		return fmt.Errorf("prompt_id is required")
	}
	if p.BaseID == "" {
		return fmt.Errorf("base_id is required")
	}
	if p.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", p.Version)
	}
	return nil
}

// CreatePromptRequest is the API request to register a new prompt
// version. The version number is assigned by the server: one past the
// highest existing version of the base identifier.
type CreatePromptRequest struct {
	PromptID string          `json:"prompt_id"`
	Params   json.RawMessage `json:"params,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

// PatchPromptRequest is the API request to update an existing prompt
// version in place. Nil fields are left unchanged.
type PatchPromptRequest struct {
	Params json.RawMessage `json:"params,omitempty"`
	Info   json.RawMessage `json:"info,omitempty"`
}

// PromptResponse wraps a single prompt record.
type PromptResponse struct {
	Prompt *PromptSpec `json:"prompt"`
}

// ListPromptsResponse wraps a set of prompt records.
type ListPromptsResponse struct {
	Prompts []*PromptSpec `json:"prompts"`
	Total   int           `json:"total"`
}

// DeletePromptResponse confirms a completed delete.
type DeletePromptResponse struct {
	Message string      `json:"message"`
	Prompt  *PromptSpec `json:"prompt,omitempty"`
}

// ReloadResponse confirms a completed registry reload.
type ReloadResponse struct {
	Message     string `json:"message"`
	PromptCount int    `json:"prompt_count"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides detailed error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}
