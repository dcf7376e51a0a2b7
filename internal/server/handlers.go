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

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptwire/promptd/internal/errors"
	"github.com/promptwire/promptd/internal/types"
)

// handleListPrompts handles GET /v1/prompts. By default only the
// latest version of each base identifier is returned; include_all=true
// returns every registered version.
func (s *Server) handleListPrompts(c *gin.Context) {
	includeAll := c.Query("include_all") == "true"

	prompts := s.coordinator.List(includeAll)
	c.JSON(http.StatusOK, types.ListPromptsResponse{
		Prompts: prompts,
		Total:   len(prompts),
	})
}

// handleGetPrompt handles GET /v1/prompts/:id. The identifier may be a
// fully versioned ID or a bare base ID; base IDs resolve to the latest
// registered version.
func (s *Server) handleGetPrompt(c *gin.Context) {
	promptID := c.Param("id")
	if promptID == "" {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrInvalidPromptID),
			"Prompt ID is required", nil)
		return
	}

	rec, err := s.coordinator.Get(promptID)
	if err != nil {
		s.handlePromptError(c, err)
		return
	}
	if s.metrics != nil {
		if rec.PromptID == promptID {
			s.metrics.RecordResolution("exact")
		} else {
			s.metrics.RecordResolution("latest")
		}
	}

	c.JSON(http.StatusOK, types.PromptResponse{Prompt: rec})
}

// handleGetPromptVersions handles GET /v1/prompts/:id/versions,
// returning every registered version of the base identifier, newest
// first.
func (s *Server) handleGetPromptVersions(c *gin.Context) {
	promptID := c.Param("id")
	if promptID == "" {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrInvalidPromptID),
			"Prompt ID is required", nil)
		return
	}

	recs, err := s.coordinator.Versions(promptID)
	if err != nil {
		s.handlePromptError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.ListPromptsResponse{
		Prompts: recs,
		Total:   len(recs),
	})
}

// handleCreatePrompt handles POST /v1/prompts. The server assigns the
// version number: one past the highest registered version of the base
// ID, or 1 when the base is new. Any version suffix on the submitted
// ID is ignored for numbering.
func (s *Server) handleCreatePrompt(c *gin.Context) {
	var req types.CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrInvalidRequestFormat),
			"Invalid JSON in request body", map[string]interface{}{
				"parse_error": err.Error(),
			})
		return
	}

	if req.PromptID == "" {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrValidationFailed),
			"prompt_id is required", nil)
		return
	}

	start := time.Now()
	rec, err := s.coordinator.Create(c.Request.Context(), &req)
	if err != nil {
		s.recordOperation("create", "failed", start)
		s.handlePromptError(c, err)
		return
	}
	s.recordOperation("create", "success", start)
	s.updateRegistryGauge()

	c.JSON(http.StatusCreated, types.PromptResponse{Prompt: rec})
}

// handlePatchPrompt handles PATCH /v1/prompts/:id. Omitted fields are
// left unchanged.
func (s *Server) handlePatchPrompt(c *gin.Context) {
	promptID := c.Param("id")
	if promptID == "" {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrInvalidPromptID),
			"Prompt ID is required", nil)
		return
	}

	var req types.PatchPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrInvalidRequestFormat),
			"Invalid JSON in request body", map[string]interface{}{
				"parse_error": err.Error(),
			})
		return
	}

	start := time.Now()
	rec, err := s.coordinator.Patch(c.Request.Context(), promptID, &req)
	if err != nil {
		s.recordOperation("patch", "failed", start)
		s.handlePromptError(c, err)
		return
	}
	s.recordOperation("patch", "success", start)

	c.JSON(http.StatusOK, types.PromptResponse{Prompt: rec})
}

// handleDeletePrompt handles DELETE /v1/prompts/:id
func (s *Server) handleDeletePrompt(c *gin.Context) {
	promptID := c.Param("id")
	if promptID == "" {
		s.respondWithError(c, http.StatusBadRequest, string(errors.ErrInvalidPromptID),
			"Prompt ID is required", nil)
		return
	}

	start := time.Now()
	rec, err := s.coordinator.Delete(c.Request.Context(), promptID)
	if err != nil {
		s.recordOperation("delete", "failed", start)
		s.handlePromptError(c, err)
		return
	}
	s.recordOperation("delete", "success", start)
	s.updateRegistryGauge()

	c.JSON(http.StatusOK, types.DeletePromptResponse{
		Message: "Prompt deleted successfully",
		Prompt:  rec,
	})
}

// handleReload handles POST /v1/admin/reload, rebuilding the registry
// from the store. This is the reconciliation path for registry entries
// that have drifted from the store.
func (s *Server) handleReload(c *gin.Context) {
	count, err := s.coordinator.Reload(c.Request.Context())
	if err != nil {
		s.handlePromptError(c, err)
		return
	}
	s.updateRegistryGauge()

	s.logger.WithField("prompt_count", count).Info("Prompt registry reloaded")
	c.JSON(http.StatusOK, types.ReloadResponse{
		Message:     "Prompt registry reloaded",
		PromptCount: count,
	})
}

// handlePromptError maps coordinator errors onto HTTP responses
func (s *Server) handlePromptError(c *gin.Context, err error) {
	if errors.IsNotFound(err) && s.metrics != nil {
		s.metrics.RecordResolution("miss")
	}
	if pe, ok := errors.AsPromptError(err); ok {
		if pe.Code == errors.ErrStoreIO && s.metrics != nil {
			s.metrics.RecordStoreError(c.Request.Method + " " + c.FullPath())
		}
		s.respondWithPromptError(c, pe)
		return
	}
	s.respondWithPromptError(c, errors.NewInternalError("Internal server error", err))
}

func (s *Server) recordOperation(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordPromptOperation(operation, status, time.Since(start))
	}
}

func (s *Server) updateRegistryGauge() {
	if s.metrics != nil {
		s.metrics.SetRegistrySize(float64(s.coordinator.Registry().Len()))
	}
}
