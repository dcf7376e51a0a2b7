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

package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/promptwire/promptd/internal/config"
	"github.com/promptwire/promptd/internal/metrics"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRequestID_Generated(t *testing.T) {
	router := newRouter(RequestID())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	if id := w.Header().Get("X-Request-ID"); id == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	router := newRouter(RequestID())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "client-id-42")
	router.ServeHTTP(w, req)

	if id := w.Header().Get("X-Request-ID"); id != "client-id-42" {
		t.Errorf("expected client request ID to be kept, got %q", id)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	recorder := metrics.NewSimpleMetrics()
	router := gin.New()
	router.Use(Metrics(recorder))
	router.GET("/v1/prompts/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/prompts/jack.v1", nil)
	router.ServeHTTP(w, req)

	// The templated route, not the concrete path, is the metric label
	data, err := recorder.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if !strings.Contains(string(data), "GET:/v1/prompts/:id:200") {
		t.Errorf("expected templated route in metrics, got %s", data)
	}
}

func TestCORS_Preflight(t *testing.T) {
	router := newRouter(CORS())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("unexpected allow origin: %q", got)
	}
	methods := w.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"GET", "POST", "PATCH", "DELETE"} {
		if !strings.Contains(methods, m) {
			t.Errorf("method %s missing from %q", m, methods)
		}
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-Admin-Key") {
		t.Error("X-Admin-Key missing from allowed headers")
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := newRouter(SecurityHeaders())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("unexpected X-Content-Type-Options: %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("unexpected X-Frame-Options: %q", got)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should not be set for plain HTTP: %q", got)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	router := newRouter(RequestSizeLimit(64))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", strings.NewReader(strings.Repeat("x", 128)))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "PAYLOAD_TOO_LARGE") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/test", strings.NewReader("small"))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for small body, got %d", w.Code)
	}
}

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	keyFile := filepath.Join(t.TempDir(), "admin_keys.txt")
	if err := os.WriteFile(keyFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}
	return keyFile
}

func TestAdminAuth_NoKeyFileConfigured(t *testing.T) {
	router := newRouter(AdminAuth(config.AuthConfig{
		AdminKeyFile:      "",
		AdminAPIKeyHeader: "X-Admin-Key",
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected open access without key file, got %d", w.Code)
	}
}

func TestAdminAuth_MissingKey(t *testing.T) {
	keyFile := writeKeyFile(t, "admin-key-1\n")
	router := newRouter(AdminAuth(config.AuthConfig{
		AdminKeyFile:      keyFile,
		AdminAPIKeyHeader: "X-Admin-Key",
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ADMIN_AUTHENTICATION_REQUIRED") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestAdminAuth_InvalidKey(t *testing.T) {
	keyFile := writeKeyFile(t, "admin-key-1\n")
	router := newRouter(AdminAuth(config.AuthConfig{
		AdminKeyFile:      keyFile,
		AdminAPIKeyHeader: "X-Admin-Key",
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", nil)
	req.Header.Set("X-Admin-Key", "wrong-key")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ADMIN_ACCESS_DENIED") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestAdminAuth_ValidKey(t *testing.T) {
	keyFile := writeKeyFile(t, "# operator keys\nadmin-key-1\n\nadmin-key-2\n")
	router := newRouter(AdminAuth(config.AuthConfig{
		AdminKeyFile:      keyFile,
		AdminAPIKeyHeader: "X-Admin-Key",
	}))

	for _, key := range []string{"admin-key-1", "admin-key-2"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/test", nil)
		req.Header.Set("X-Admin-Key", key)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("key %q: expected 200, got %d", key, w.Code)
		}
	}
}

func TestValidateAdminKey(t *testing.T) {
	keyFile := writeKeyFile(t, "# comment\nkey-one\n  key-two  \n")

	tests := []struct {
		key   string
		valid bool
	}{
		{"key-one", true},
		{"key-two", true}, // whitespace around keys is trimmed
		{"# comment", false},
		{"", false},
		{"key-three", false},
	}

	for _, tt := range tests {
		if got := validateAdminKey(tt.key, keyFile); got != tt.valid {
			t.Errorf("validateAdminKey(%q) = %v, want %v", tt.key, got, tt.valid)
		}
	}

	if validateAdminKey("key-one", "/nonexistent/keys.txt") {
		t.Error("missing key file should deny access")
	}
}

func TestLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "plain"} {
		router := gin.New()
		router.Use(Logger(config.LoggingConfig{Format: format}))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("format %s: expected 200, got %d", format, w.Code)
		}
	}
}

func TestMetricsMiddleware_InFlightBalanced(t *testing.T) {
	recorder := metrics.NewSimpleMetrics()
	router := gin.New()
	router.Use(Metrics(recorder))
	router.GET("/test", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	}

	data, err := recorder.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if !strings.Contains(string(data), `"in_flight":0`) {
		t.Errorf("in-flight counter should return to zero: %s", data)
	}
}
