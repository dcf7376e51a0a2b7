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

// Package prompts coordinates prompt mutations between the persistent
// store and the in-memory registry. The store is the source of truth:
// the registry is only updated after the store mutation succeeds.
package prompts

import (
	"context"
	"sync"
	"time"

	"github.com/promptwire/promptd/internal/errors"
	"github.com/promptwire/promptd/internal/logging"
	"github.com/promptwire/promptd/internal/registry"
	"github.com/promptwire/promptd/internal/storage"
	"github.com/promptwire/promptd/internal/types"
	"github.com/promptwire/promptd/internal/version"

	"gorm.io/datatypes"
)

// Coordinator serializes prompt mutations over a registry backed by a
// PromptStore. Reads go straight to the registry; mutations hold a
// lock so that version assignment and the store write are atomic with
// respect to each other.
type Coordinator struct {
	mu       sync.Mutex
	registry *registry.Registry
	store    storage.PromptStore
	logger   *logging.Logger
}

// NewCoordinator creates a coordinator over the given registry and store
func NewCoordinator(reg *registry.Registry, store storage.PromptStore, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		registry: reg,
		store:    store,
		logger:   logger.WithComponent("prompts"),
	}
}

// Registry exposes the underlying registry for read-only access
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// Load populates the registry from the store. Existing registry
// contents are replaced wholesale.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Coordinator) load(ctx context.Context) error {
	rows, err := c.store.LoadAll(ctx)
	if err != nil {
		return errors.NewStoreIO("load_all", err)
	}

	specs := make([]*types.PromptSpec, 0, len(rows))
	for _, row := range rows {
		spec := row.ToSpec()
		if err := spec.Validate(); err != nil {
			// A malformed store row must not poison the cache; it stays
			// in the store for out-of-band cleanup.
			c.logger.WithField("prompt_id", spec.PromptID).Error("Skipping malformed prompt record", err)
			continue
		}
		specs = append(specs, spec)
	}
	c.registry.LoadAll(specs)

	c.logger.WithField("prompt_count", len(specs)).Info("Prompt registry loaded")
	return nil
}

// Get resolves a prompt ID (versioned or base form) to its record
func (c *Coordinator) Get(promptID string) (*types.PromptSpec, error) {
	return c.registry.ResolveRecord(promptID)
}

// List returns the registry contents. With includeAll set, every
// version of every prompt is returned; otherwise only the latest
// version per base ID.
func (c *Coordinator) List(includeAll bool) []*types.PromptSpec {
	if includeAll {
		all := make([]*types.PromptSpec, 0, c.registry.Len())
		for _, id := range c.registry.IDs() {
			if rec, ok := c.registry.Get(id); ok {
				all = append(all, rec)
			}
		}
		return all
	}
	return c.registry.LatestVersions()
}

// Versions returns every registered version of a prompt, newest first
func (c *Coordinator) Versions(promptID string) ([]*types.PromptSpec, error) {
	recs := c.registry.VersionsFor(promptID)
	if len(recs) == 0 {
		return nil, errors.NewNoVersions(promptID)
	}
	return recs, nil
}

// Create registers a new prompt version. The version number is
// assigned by the coordinator: one past the highest registered version
// of the base ID, or 1 when the base is new.
func (c *Coordinator) Create(ctx context.Context, req *types.CreatePromptRequest) (*types.PromptSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	baseID := version.BaseID(req.PromptID)
	ver := c.registry.NextVersion(baseID)

	row := &storage.PromptRow{
		PromptID: baseID,
		Version:  ver,
		Params:   datatypes.JSON(req.Params),
		Info:     datatypes.JSON(req.Info),
	}
	if err := c.store.Create(ctx, row); err != nil {
		c.logOperation(req.PromptID, "create", "failed", start, err)
		return nil, errors.NewStoreIO("create", err)
	}

	spec := row.ToSpec()
	c.registry.Upsert(spec)

	c.logOperation(spec.PromptID, "create", "success", start, nil)
	return spec, nil
}

// Patch updates the params and/or info of an existing prompt version.
// The target is resolved through the registry first; the store record
// is then located by natural key and mutated by its surrogate key. A
// registry entry with no backing store record is reported as an
// inconsistency and the registry is left untouched.
func (c *Coordinator) Patch(ctx context.Context, promptID string, req *types.PatchPromptRequest) (*types.PromptSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	resolvedID, err := c.registry.Resolve(promptID)
	if err != nil {
		c.logOperation(promptID, "patch", "not_found", start, err)
		return nil, err
	}

	baseID, ver := version.Parse(resolvedID)
	row, err := c.store.FindOne(ctx, baseID, ver)
	if err != nil {
		c.logOperation(resolvedID, "patch", "failed", start, err)
		return nil, errors.NewStoreIO("find", err)
	}
	if row == nil {
		c.logger.LogStoreDrift(resolvedID, baseID, ver)
		return nil, errors.NewStoreInconsistency(resolvedID, baseID, ver)
	}

	updated, err := c.store.Update(ctx, row.SurrogateKey, datatypes.JSON(req.Params), datatypes.JSON(req.Info))
	if err != nil {
		c.logOperation(resolvedID, "patch", "failed", start, err)
		return nil, errors.NewStoreIO("update", err)
	}

	spec := updated.ToSpec()
	c.registry.Replace(resolvedID, spec)

	c.logOperation(resolvedID, "patch", "success", start, nil)
	return spec, nil
}

// Delete removes a prompt version from the store and the registry.
// Resolution and inconsistency handling mirror Patch.
func (c *Coordinator) Delete(ctx context.Context, promptID string) (*types.PromptSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	resolvedID, err := c.registry.Resolve(promptID)
	if err != nil {
		c.logOperation(promptID, "delete", "not_found", start, err)
		return nil, err
	}

	baseID, ver := version.Parse(resolvedID)
	row, err := c.store.FindOne(ctx, baseID, ver)
	if err != nil {
		c.logOperation(resolvedID, "delete", "failed", start, err)
		return nil, errors.NewStoreIO("find", err)
	}
	if row == nil {
		c.logger.LogStoreDrift(resolvedID, baseID, ver)
		return nil, errors.NewStoreInconsistency(resolvedID, baseID, ver)
	}

	if err := c.store.Delete(ctx, row.SurrogateKey); err != nil {
		c.logOperation(resolvedID, "delete", "failed", start, err)
		return nil, errors.NewStoreIO("delete", err)
	}

	spec := row.ToSpec()
	c.registry.Remove(resolvedID)

	c.logOperation(resolvedID, "delete", "success", start, nil)
	return spec, nil
}

// Reload re-reads the store and rebuilds the registry
func (c *Coordinator) Reload(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return 0, err
	}
	return c.registry.Len(), nil
}

func (c *Coordinator) logOperation(promptID, op, status string, start time.Time, err error) {
	duration := time.Since(start)
	c.logger.LogPromptOperation(promptID, op, status, &duration, err)
}
