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

package tests

import (
	"encoding/json"
	"fmt"

	"github.com/promptwire/promptd/internal/types"
)

// TestPromptBuilder provides a fluent interface for building prompt
// registration requests
type TestPromptBuilder struct {
	request *types.CreatePromptRequest
}

// NewTestPrompt creates a prompt request builder with default values
func NewTestPrompt(promptID string) *TestPromptBuilder {
	return &TestPromptBuilder{
		request: &types.CreatePromptRequest{
			PromptID: promptID,
			Params:   json.RawMessage(`{"temperature":0.7,"max_tokens":1024}`),
		},
	}
}

// WithParams sets the prompt parameters
func (b *TestPromptBuilder) WithParams(params interface{}) *TestPromptBuilder {
	data, _ := json.Marshal(params)
	b.request.Params = data
	return b
}

// WithRawParams sets the prompt parameters from a raw JSON string
func (b *TestPromptBuilder) WithRawParams(params string) *TestPromptBuilder {
	b.request.Params = json.RawMessage(params)
	return b
}

// WithInfo sets the prompt metadata
func (b *TestPromptBuilder) WithInfo(info interface{}) *TestPromptBuilder {
	data, _ := json.Marshal(info)
	b.request.Info = data
	return b
}

// Build returns the built request
func (b *TestPromptBuilder) Build() *types.CreatePromptRequest {
	return b.request
}

// TestDataGenerator generates test data for prompt records
type TestDataGenerator struct {
	counter int
}

// NewTestDataGenerator creates a new test data generator
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{}
}

// NextPromptID returns a unique base identifier
func (g *TestDataGenerator) NextPromptID() string {
	g.counter++
	return fmt.Sprintf("generated-prompt-%d", g.counter)
}

// RandomParams returns a representative params document
func (g *TestDataGenerator) RandomParams() json.RawMessage {
	g.counter++
	return json.RawMessage(fmt.Sprintf(`{"temperature":0.%d,"model":"model-%d"}`, g.counter%10, g.counter))
}
