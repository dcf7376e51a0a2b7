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

package registry

import (
	"github.com/promptwire/promptd/internal/errors"
	"github.com/promptwire/promptd/internal/types"
)

// Resolve maps a client-supplied identifier, which may or may not carry
// an explicit version, to the versioned identifier of a cached record.
//
// A verbatim match wins outright: an explicitly requested version is
// honored even when a newer version exists. Otherwise the identifier
// falls back to latest-version resolution on its base. An identifier
// that resolves neither way yields a not-found error carrying the
// identifier exactly as the caller supplied it.
func (r *Registry) Resolve(promptID string) (string, error) {
	if _, ok := r.Get(promptID); ok {
		return promptID, nil
	}

	latest := r.LatestVersionID(promptID)
	if _, ok := r.Get(latest); ok {
		return latest, nil
	}

	return "", errors.NewNotFound(promptID)
}

// ResolveRecord resolves promptID and returns the cached record it
// names.
func (r *Registry) ResolveRecord(promptID string) (*types.PromptSpec, error) {
	resolved, err := r.Resolve(promptID)
	if err != nil {
		return nil, err
	}

	rec, ok := r.Get(resolved)
	if !ok {
		// The entry vanished between Resolve and Get; treat it the
		// same as an unresolved identifier.
		return nil, errors.NewNotFound(promptID)
	}
	return rec, nil
}
