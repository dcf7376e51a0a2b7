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

// Package registry holds the in-memory cache of prompt records.
//
// The registry is a derived view of the persistent store: it is
// populated once at startup via LoadAll and mutated only after a store
// mutation has been confirmed. It is never persisted itself.
package registry

import (
	"sort"
	"sync"

	"github.com/promptwire/promptd/internal/types"
	"github.com/promptwire/promptd/internal/version"
)

// Registry maps versioned prompt identifiers to prompt records. All
// methods are safe for concurrent use; a single mutex scoped to the
// whole registry keeps every read and write mutually exclusive, so a
// reader never observes a partially applied write.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]*types.PromptSpec
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		prompts: make(map[string]*types.PromptSpec),
	}
}

// LoadAll replaces the registry contents with the given records. It is
// used at startup and for out-of-band reconciliation after drift.
func (r *Registry) LoadAll(records []*types.PromptSpec) {
	fresh := make(map[string]*types.PromptSpec, len(records))
	for _, rec := range records {
		if rec == nil || rec.PromptID == "" {
			continue
		}
		fresh[rec.PromptID] = rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = fresh
}

// Upsert inserts or overwrites the record at its versioned identifier
func (r *Registry) Upsert(rec *types.PromptSpec) {
	if rec == nil || rec.PromptID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[rec.PromptID] = rec
}

// Remove deletes the entry if present; absent entries are a no-op
func (r *Registry) Remove(promptID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prompts, promptID)
}

// Replace atomically removes the entry at promptID and inserts rec.
// A concurrent reader observes either the old or the new record, never
// absence. Patch uses this to guarantee no stale derived fields survive
// an update.
func (r *Registry) Replace(promptID string, rec *types.PromptSpec) {
	if rec == nil || rec.PromptID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prompts, promptID)
	r.prompts[rec.PromptID] = rec
}

// Get returns the record stored at the exact versioned identifier
func (r *Registry) Get(promptID string) (*types.PromptSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.prompts[promptID]
	return rec, ok
}

// Len returns the number of cached records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}

// IDs returns all cached versioned identifiers in no particular order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	return ids
}

// LatestVersions returns one record per distinct base identifier: the
// record with the highest version number. When two entries parse to the
// same (base, version) pair the one encountered later in iteration
// wins; that situation cannot arise under normal construction and the
// outcome is deliberately left loose rather than treated as an error.
func (r *Registry) LatestVersions() []*types.PromptSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*types.PromptSpec)
	for id, rec := range r.prompts {
		base, ver := version.Parse(id)
		if cur, ok := latest[base]; !ok || ver >= version.Number(cur.PromptID) {
			latest[base] = rec
		}
	}

	result := make([]*types.PromptSpec, 0, len(latest))
	for _, rec := range latest {
		result = append(result, rec)
	}
	return result
}

// VersionsFor returns every record whose parsed base identifier equals
// the base of promptID, newest version first. An unknown base yields an
// empty slice, not an error.
func (r *Registry) VersionsFor(promptID string) []*types.PromptSpec {
	base, _ := version.Parse(promptID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*types.PromptSpec
	for id, rec := range r.prompts {
		if b, _ := version.Parse(id); b == base {
			result = append(result, rec)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return version.Number(result[i].PromptID) > version.Number(result[j].PromptID)
	})
	return result
}

// LatestVersionID returns the versioned identifier carrying the highest
// version among entries sharing promptID's base. When no entry matches,
// the input is returned unchanged: the registry does not invent
// identifiers for resources it has no knowledge of, which preserves
// pass-through behavior for identifiers outside the versioning scheme.
func (r *Registry) LatestVersionID(promptID string) string {
	base, _ := version.Parse(promptID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	bestID := ""
	bestVer := 0
	for id := range r.prompts {
		b, v := version.Parse(id)
		if b != base {
			continue
		}
		if bestID == "" || v >= bestVer {
			bestID = id
			bestVer = v
		}
	}

	if bestID == "" {
		return promptID
	}
	return bestID
}

// NextVersion returns the version number a new record for promptID's
// base should carry: one past the highest existing version, or 1 when
// the base is unknown.
func (r *Registry) NextVersion(promptID string) int {
	base, _ := version.Parse(promptID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for id := range r.prompts {
		if b, v := version.Parse(id); b == base && v > max {
			max = v
		}
	}
	return max + 1
}
