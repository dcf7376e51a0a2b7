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

package prompts

import (
	"context"
	"fmt"
	"testing"

	"github.com/promptwire/promptd/internal/config"
	"github.com/promptwire/promptd/internal/errors"
	"github.com/promptwire/promptd/internal/logging"
	"github.com/promptwire/promptd/internal/registry"
	"github.com/promptwire/promptd/internal/storage"
	"github.com/promptwire/promptd/internal/types"

	"gorm.io/datatypes"
)

// mockStore is a scripted PromptStore that records which keys
// mutations were addressed to.
type mockStore struct {
	rows []*storage.PromptRow

	findCalls   int
	findErr     error
	createErr   error
	updateErr   error
	deleteErr   error
	loadAllErr  error
	updatedKeys []storage.SurrogateKey
	deletedKeys []storage.SurrogateKey
}

func (m *mockStore) LoadAll(ctx context.Context) ([]*storage.PromptRow, error) {
	if m.loadAllErr != nil {
		return nil, m.loadAllErr
	}
	return m.rows, nil
}

func (m *mockStore) FindOne(ctx context.Context, baseID string, ver int) (*storage.PromptRow, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, row := range m.rows {
		if row.PromptID == baseID && row.Version == ver {
			return row, nil
		}
	}
	return nil, nil
}

func (m *mockStore) Create(ctx context.Context, row *storage.PromptRow) error {
	if m.createErr != nil {
		return m.createErr
	}
	row.SurrogateKey = storage.SurrogateKey(fmt.Sprintf("key-%s-%d", row.PromptID, row.Version))
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockStore) Update(ctx context.Context, key storage.SurrogateKey, params, info datatypes.JSON) (*storage.PromptRow, error) {
	m.updatedKeys = append(m.updatedKeys, key)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	for _, row := range m.rows {
		if row.SurrogateKey == key {
			if params != nil {
				row.Params = params
			}
			if info != nil {
				row.Info = info
			}
			return row, nil
		}
	}
	return nil, fmt.Errorf("record not found: %s", key)
}

func (m *mockStore) Delete(ctx context.Context, key storage.SurrogateKey) error {
	m.deletedKeys = append(m.deletedKeys, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, row := range m.rows {
		if row.SurrogateKey == key {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record not found: %s", key)
}

func (m *mockStore) HealthCheck(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                          { return nil }

func row(key, baseID string, ver int) *storage.PromptRow {
	return &storage.PromptRow{
		SurrogateKey: storage.SurrogateKey(key),
		PromptID:     baseID,
		Version:      ver,
		Params:       datatypes.JSON(`{}`),
	}
}

func newTestCoordinator(t *testing.T, store storage.PromptStore) *Coordinator {
	t.Helper()
	logger := logging.NewLogger(config.LoggingConfig{Level: "error", Format: "json"})
	c := NewCoordinator(registry.New(), store, logger)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c
}

func TestCoordinator_Load(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
		row("k3", "jill", 1),
	}}
	c := newTestCoordinator(t, store)

	if got := c.Registry().Len(); got != 3 {
		t.Fatalf("expected 3 cached records, got %d", got)
	}
	rec, ok := c.Registry().Get("jack.v2")
	if !ok {
		t.Fatal("expected jack.v2 in registry")
	}
	if rec.BaseID != "jack" || rec.Version != 2 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestCoordinator_LoadSkipsMalformedRows(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "", 1),     // no base identifier
		row("k3", "jill", 0), // version below 1
	}}
	c := newTestCoordinator(t, store)

	if got := c.Registry().Len(); got != 1 {
		t.Fatalf("expected only the valid record cached, got %d", got)
	}
	if _, ok := c.Registry().Get("jack.v1"); !ok {
		t.Error("valid record missing from registry")
	}
}

func TestCoordinator_LoadError(t *testing.T) {
	store := &mockStore{loadAllErr: fmt.Errorf("connection refused")}
	logger := logging.NewLogger(config.LoggingConfig{Level: "error", Format: "json"})
	c := NewCoordinator(registry.New(), store, logger)

	err := c.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := errors.AsPromptError(err)
	if !ok || pe.Code != errors.ErrStoreIO {
		t.Errorf("expected store IO error, got %v", err)
	}
}

func TestCoordinator_Get(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
	}}
	c := newTestCoordinator(t, store)

	// Base ID resolves to latest
	rec, err := c.Get("jack")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.PromptID != "jack.v2" {
		t.Errorf("expected jack.v2, got %s", rec.PromptID)
	}

	// Explicit version is honored
	rec, err = c.Get("jack.v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.PromptID != "jack.v1" {
		t.Errorf("expected jack.v1, got %s", rec.PromptID)
	}

	if _, err := c.Get("ghost"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCoordinator_List(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
		row("k3", "jill", 1),
	}}
	c := newTestCoordinator(t, store)

	if got := len(c.List(false)); got != 2 {
		t.Errorf("expected 2 latest records, got %d", got)
	}
	if got := len(c.List(true)); got != 3 {
		t.Errorf("expected 3 records with includeAll, got %d", got)
	}
}

func TestCoordinator_Versions(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 3),
	}}
	c := newTestCoordinator(t, store)

	recs, err := c.Versions("jack")
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(recs) != 2 || recs[0].PromptID != "jack.v3" {
		t.Errorf("unexpected versions: %+v", recs)
	}

	if _, err := c.Versions("ghost"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCoordinator_Create(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
	}}
	c := newTestCoordinator(t, store)

	rec, err := c.Create(context.Background(), &types.CreatePromptRequest{
		PromptID: "jack",
		Params:   []byte(`{"temperature":0.7}`),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.PromptID != "jack.v3" {
		t.Errorf("expected jack.v3, got %s", rec.PromptID)
	}
	if _, ok := c.Registry().Get("jack.v3"); !ok {
		t.Error("created record missing from registry")
	}

	// A versioned submission still gets the next sequential version
	rec, err = c.Create(context.Background(), &types.CreatePromptRequest{PromptID: "jack.v1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.PromptID != "jack.v4" {
		t.Errorf("expected jack.v4, got %s", rec.PromptID)
	}

	// A fresh base starts at version 1
	rec, err = c.Create(context.Background(), &types.CreatePromptRequest{PromptID: "jill"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.PromptID != "jill.v1" {
		t.Errorf("expected jill.v1, got %s", rec.PromptID)
	}
}

func TestCoordinator_CreateStoreError(t *testing.T) {
	store := &mockStore{createErr: fmt.Errorf("disk full")}
	c := newTestCoordinator(t, store)

	_, err := c.Create(context.Background(), &types.CreatePromptRequest{PromptID: "jack"})
	pe, ok := errors.AsPromptError(err)
	if !ok || pe.Code != errors.ErrStoreIO {
		t.Fatalf("expected store IO error, got %v", err)
	}
	if c.Registry().Len() != 0 {
		t.Error("registry mutated despite store failure")
	}
}

func TestCoordinator_Patch(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
	}}
	c := newTestCoordinator(t, store)

	rec, err := c.Patch(context.Background(), "jack.v1", &types.PatchPromptRequest{
		Params: []byte(`{"temperature":0.9}`),
	})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if rec.PromptID != "jack.v1" {
		t.Errorf("expected jack.v1, got %s", rec.PromptID)
	}
	if string(rec.Params) != `{"temperature":0.9}` {
		t.Errorf("unexpected params: %s", rec.Params)
	}

	// The mutation must be addressed by the surrogate key only
	if len(store.updatedKeys) != 1 || store.updatedKeys[0] != "k1" {
		t.Errorf("expected update addressed to k1, got %v", store.updatedKeys)
	}

	// The registry reflects the patched record
	cached, _ := c.Registry().Get("jack.v1")
	if string(cached.Params) != `{"temperature":0.9}` {
		t.Errorf("registry not updated: %s", cached.Params)
	}
}

func TestCoordinator_PatchBaseResolvesLatest(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
	}}
	c := newTestCoordinator(t, store)

	rec, err := c.Patch(context.Background(), "jack", &types.PatchPromptRequest{
		Info: []byte(`{"note":"latest"}`),
	})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if rec.PromptID != "jack.v2" {
		t.Errorf("expected jack.v2, got %s", rec.PromptID)
	}
	if len(store.updatedKeys) != 1 || store.updatedKeys[0] != "k2" {
		t.Errorf("expected update addressed to k2, got %v", store.updatedKeys)
	}
}

func TestCoordinator_PatchNotFound(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{row("k1", "jack", 1)}}
	c := newTestCoordinator(t, store)
	store.findCalls = 0

	_, err := c.Patch(context.Background(), "ghost", &types.PatchPromptRequest{})
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	// Resolution fails in the registry; the store is never consulted
	if store.findCalls != 0 {
		t.Errorf("store consulted for unresolvable identifier: %d calls", store.findCalls)
	}
	if len(store.updatedKeys) != 0 {
		t.Errorf("unexpected mutations: %v", store.updatedKeys)
	}
}

func TestCoordinator_PatchStoreInconsistency(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{row("k1", "jack", 1)}}
	c := newTestCoordinator(t, store)

	// Simulate out-of-band deletion: the registry still has jack.v1
	// but the store does not.
	store.rows = nil

	_, err := c.Patch(context.Background(), "jack.v1", &types.PatchPromptRequest{})
	if !errors.IsStoreInconsistency(err) {
		t.Fatalf("expected store inconsistency, got %v", err)
	}

	// No mutation happened and the registry entry is left in place for
	// out-of-band reconciliation.
	if len(store.updatedKeys) != 0 {
		t.Errorf("unexpected mutations: %v", store.updatedKeys)
	}
	if _, ok := c.Registry().Get("jack.v1"); !ok {
		t.Error("registry entry removed on inconsistency")
	}
}

func TestCoordinator_Delete(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
	}}
	c := newTestCoordinator(t, store)

	rec, err := c.Delete(context.Background(), "jack.v1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if rec.PromptID != "jack.v1" {
		t.Errorf("expected jack.v1, got %s", rec.PromptID)
	}

	// The mutation must be addressed by the surrogate key only
	if len(store.deletedKeys) != 1 || store.deletedKeys[0] != "k1" {
		t.Errorf("expected delete addressed to k1, got %v", store.deletedKeys)
	}

	if _, ok := c.Registry().Get("jack.v1"); ok {
		t.Error("deleted record still in registry")
	}
	if _, ok := c.Registry().Get("jack.v2"); !ok {
		t.Error("unrelated record removed")
	}
}

func TestCoordinator_DeleteBaseResolvesLatest(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{
		row("k1", "jack", 1),
		row("k2", "jack", 2),
	}}
	c := newTestCoordinator(t, store)

	rec, err := c.Delete(context.Background(), "jack")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if rec.PromptID != "jack.v2" {
		t.Errorf("expected latest jack.v2 deleted, got %s", rec.PromptID)
	}
	if len(store.deletedKeys) != 1 || store.deletedKeys[0] != "k2" {
		t.Errorf("expected delete addressed to k2, got %v", store.deletedKeys)
	}
}

func TestCoordinator_DeleteNotFound(t *testing.T) {
	store := &mockStore{}
	c := newTestCoordinator(t, store)

	_, err := c.Delete(context.Background(), "ghost.v1")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.deletedKeys) != 0 {
		t.Errorf("unexpected mutations: %v", store.deletedKeys)
	}
}

func TestCoordinator_DeleteStoreInconsistency(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{row("k1", "jack", 1)}}
	c := newTestCoordinator(t, store)

	store.rows = nil

	_, err := c.Delete(context.Background(), "jack.v1")
	if !errors.IsStoreInconsistency(err) {
		t.Fatalf("expected store inconsistency, got %v", err)
	}
	if len(store.deletedKeys) != 0 {
		t.Errorf("unexpected mutations: %v", store.deletedKeys)
	}
	if _, ok := c.Registry().Get("jack.v1"); !ok {
		t.Error("registry entry removed on inconsistency")
	}
}

func TestCoordinator_Reload(t *testing.T) {
	store := &mockStore{rows: []*storage.PromptRow{row("k1", "jack", 1)}}
	c := newTestCoordinator(t, store)

	// The store changes out of band; reload reconciles the registry
	store.rows = []*storage.PromptRow{
		row("k2", "jack", 2),
		row("k3", "jill", 1),
	}

	count, err := c.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 records after reload, got %d", count)
	}
	if _, ok := c.Registry().Get("jack.v1"); ok {
		t.Error("stale entry survived reload")
	}
}
