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

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	serverURL    = "http://localhost:8090"
	verbose      = false
	adminKeyFile = ""
)

// API request/response structures

type PromptSpec struct {
	PromptID string          `json:"prompt_id"`
	BaseID   string          `json:"base_id"`
	Version  int             `json:"version"`
	Params   json.RawMessage `json:"params,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

type CreatePromptRequest struct {
	PromptID string          `json:"prompt_id"`
	Params   json.RawMessage `json:"params,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

type PatchPromptRequest struct {
	Params json.RawMessage `json:"params,omitempty"`
	Info   json.RawMessage `json:"info,omitempty"`
}

type PromptResponse struct {
	Prompt *PromptSpec `json:"prompt"`
}

type ListPromptsResponse struct {
	Prompts []*PromptSpec `json:"prompts"`
	Total   int           `json:"total"`
}

type DeletePromptResponse struct {
	Message string      `json:"message"`
	Prompt  *PromptSpec `json:"prompt,omitempty"`
}

type ReloadResponse struct {
	Message     string `json:"message"`
	PromptCount int    `json:"prompt_count"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Parse global flags until we hit the command
	args := os.Args[1:]
	commandIndex := 0

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			commandIndex = i
			break
		}
		if arg == "--server-url" && i+1 < len(args) {
			serverURL = args[i+1]
			i++
		} else if arg == "--admin-key-file" && i+1 < len(args) {
			adminKeyFile = args[i+1]
			i++
		} else if arg == "-v" || arg == "--verbose" {
			verbose = true
		}
		commandIndex = i + 1
	}

	if commandIndex >= len(args) {
		printUsage()
		os.Exit(1)
	}

	command := args[commandIndex]
	commandArgs := args[commandIndex+1:]

	switch command {
	case "list":
		handleList(commandArgs)
	case "get":
		handleGet(commandArgs)
	case "versions":
		handleVersions(commandArgs)
	case "create":
		handleCreate(commandArgs)
	case "patch":
		handlePatch(commandArgs)
	case "delete":
		handleDelete(commandArgs)
	case "reload":
		handleReload(commandArgs)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Promptd Admin Tool")
	fmt.Println("")
	fmt.Println("Usage: promptd-admin [global-flags] <command> [args]")
	fmt.Println("")
	fmt.Println("Global Flags:")
	fmt.Println("  --server-url <url>         Server URL (default: http://localhost:8090)")
	fmt.Println("  --admin-key-file <file>    Admin API key file for mutating operations")
	fmt.Println("  -v, --verbose             Verbose output")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list [--all]                        List prompts (latest version per base ID)")
	fmt.Println("  get <prompt-id>                     Get a prompt (base ID resolves to latest)")
	fmt.Println("  versions <prompt-id>                List all versions of a prompt")
	fmt.Println("  create <prompt-id> [flags]          Register a new prompt version (requires admin key)")
	fmt.Println("  patch <prompt-id> [flags]           Update a prompt version in place (requires admin key)")
	fmt.Println("  delete <prompt-id>                  Delete a prompt version (requires admin key)")
	fmt.Println("  reload                              Rebuild the registry from the store (requires admin key)")
	fmt.Println("")
	fmt.Println("Create/Patch Flags:")
	fmt.Println("  --params-file <file>      JSON file with prompt params")
	fmt.Println("  --info-file <file>        JSON file with prompt info")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  promptd-admin list --all")
	fmt.Println("  promptd-admin get support-triage")
	fmt.Println("  promptd-admin versions support-triage")
	fmt.Println("  promptd-admin --admin-key-file admin.key create support-triage --params-file params.json")
	fmt.Println("  promptd-admin --admin-key-file admin.key patch support-triage.v2 --params-file params.json")
	fmt.Println("  promptd-admin --admin-key-file admin.key delete support-triage.v1")
	fmt.Println("  promptd-admin --admin-key-file admin.key reload")
}

func handleList(args []string) {
	listFlags := flag.NewFlagSet("list", flag.ExitOnError)
	all := listFlags.Bool("all", false, "Include every version, not just the latest per base ID")
	if err := listFlags.Parse(args); err != nil {
		os.Exit(1)
	}

	endpoint := "/v1/prompts"
	if *all {
		endpoint += "?include_all=true"
	}

	respBody, err := makeAPIRequest("GET", endpoint, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list prompts: %v\n", err)
		os.Exit(1)
	}

	var resp ListPromptsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	if resp.Total == 0 {
		fmt.Println("No prompts registered")
		return
	}

	fmt.Printf("Prompts (%d):\n", resp.Total)
	for _, p := range resp.Prompts {
		fmt.Printf("  %s (base: %s, version: %d)\n", p.PromptID, p.BaseID, p.Version)
	}
}

func handleGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: promptd-admin get <prompt-id>\n")
		os.Exit(1)
	}

	respBody, err := makeAPIRequest("GET", "/v1/prompts/"+url.PathEscape(args[0]), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get prompt: %v\n", err)
		os.Exit(1)
	}

	var resp PromptResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	printPrompt(resp.Prompt)
}

func handleVersions(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: promptd-admin versions <prompt-id>\n")
		os.Exit(1)
	}

	respBody, err := makeAPIRequest("GET", "/v1/prompts/"+url.PathEscape(args[0])+"/versions", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list versions: %v\n", err)
		os.Exit(1)
	}

	var resp ListPromptsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Versions of %s (%d):\n", args[0], resp.Total)
	for _, p := range resp.Prompts {
		fmt.Printf("  %s (version %d)\n", p.PromptID, p.Version)
	}
}

func handleCreate(args []string) {
	createFlags := flag.NewFlagSet("create", flag.ExitOnError)
	paramsFile := createFlags.String("params-file", "", "JSON file with prompt params")
	infoFile := createFlags.String("info-file", "", "JSON file with prompt info")

	createFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: promptd-admin create <prompt-id> [flags]\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		createFlags.PrintDefaults()
	}

	if len(args) < 1 {
		createFlags.Usage()
		os.Exit(1)
	}

	promptID := args[0]
	if err := createFlags.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	req := CreatePromptRequest{PromptID: promptID}
	var err error
	if req.Params, err = readJSONFile(*paramsFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read params file: %v\n", err)
		os.Exit(1)
	}
	if req.Info, err = readJSONFile(*infoFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read info file: %v\n", err)
		os.Exit(1)
	}

	respBody, err := makeAdminAPIRequest("POST", "/v1/prompts", req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create prompt: %v\n", err)
		os.Exit(1)
	}

	var resp PromptResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", resp.Prompt.PromptID)
}

func handlePatch(args []string) {
	patchFlags := flag.NewFlagSet("patch", flag.ExitOnError)
	paramsFile := patchFlags.String("params-file", "", "JSON file with prompt params")
	infoFile := patchFlags.String("info-file", "", "JSON file with prompt info")

	patchFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: promptd-admin patch <prompt-id> [flags]\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		patchFlags.PrintDefaults()
	}

	if len(args) < 1 {
		patchFlags.Usage()
		os.Exit(1)
	}

	promptID := args[0]
	if err := patchFlags.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	var req PatchPromptRequest
	var err error
	if req.Params, err = readJSONFile(*paramsFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read params file: %v\n", err)
		os.Exit(1)
	}
	if req.Info, err = readJSONFile(*infoFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read info file: %v\n", err)
		os.Exit(1)
	}
	if req.Params == nil && req.Info == nil {
		fmt.Fprintf(os.Stderr, "Error: at least one of --params-file or --info-file is required\n")
		os.Exit(1)
	}

	respBody, err := makeAdminAPIRequest("PATCH", "/v1/prompts/"+url.PathEscape(promptID), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to patch prompt: %v\n", err)
		os.Exit(1)
	}

	var resp PromptResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Patched %s\n", resp.Prompt.PromptID)
}

func handleDelete(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: promptd-admin delete <prompt-id>\n")
		os.Exit(1)
	}

	respBody, err := makeAdminAPIRequest("DELETE", "/v1/prompts/"+url.PathEscape(args[0]), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete prompt: %v\n", err)
		os.Exit(1)
	}

	var resp DeletePromptResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	if resp.Prompt != nil {
		fmt.Printf("Deleted %s\n", resp.Prompt.PromptID)
	} else {
		fmt.Println(resp.Message)
	}
}

func handleReload(args []string) {
	respBody, err := makeAdminAPIRequest("POST", "/v1/admin/reload", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reload registry: %v\n", err)
		os.Exit(1)
	}

	var resp ReloadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s (%d prompts)\n", resp.Message, resp.PromptCount)
}

func printPrompt(p *PromptSpec) {
	if p == nil {
		fmt.Println("No prompt returned")
		return
	}
	fmt.Printf("Prompt ID: %s\n", p.PromptID)
	fmt.Printf("Base ID:   %s\n", p.BaseID)
	fmt.Printf("Version:   %d\n", p.Version)
	if len(p.Params) > 0 {
		fmt.Printf("Params:    %s\n", string(p.Params))
	}
	if len(p.Info) > 0 {
		fmt.Printf("Info:      %s\n", string(p.Info))
	}
}

// readJSONFile reads and validates a JSON file; empty path returns nil
func readJSONFile(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var jsonData interface{}
	if err := json.Unmarshal(data, &jsonData); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}

func makeAPIRequest(method, endpoint string, body interface{}) ([]byte, error) {
	return doRequest(method, endpoint, body, "")
}

func makeAdminAPIRequest(method, endpoint string, body interface{}) ([]byte, error) {
	// Check if admin key file is provided
	if adminKeyFile == "" {
		return nil, fmt.Errorf("admin key file is required for administrative operations. Use --admin-key-file flag")
	}

	// Read admin key from file
	adminKeyBytes, err := os.ReadFile(adminKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin key file: %w", err)
	}
	adminKey := strings.TrimSpace(string(adminKeyBytes))

	if adminKey == "" {
		return nil, fmt.Errorf("admin key file is empty")
	}

	return doRequest(method, endpoint, body, adminKey)
}

func doRequest(method, endpoint string, body interface{}, adminKey string) ([]byte, error) {
	requestURL := strings.TrimRight(serverURL, "/") + endpoint

	if verbose {
		fmt.Printf("Making %s request to: %s\n", method, requestURL)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)

		if verbose {
			fmt.Printf("Request body: %s\n", string(jsonData))
		}
	}

	req, err := http.NewRequest(method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if verbose {
		fmt.Printf("Response status: %d\n", resp.StatusCode)
		fmt.Printf("Response body: %s\n", string(respBody))
	}

	if resp.StatusCode >= 400 {
		// Try to parse structured error response
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
