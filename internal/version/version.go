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

// Package version implements the versioned prompt identifier scheme.
//
// A versioned identifier has the form "base.vN" where N is a positive
// integer; an identifier without the suffix is implicitly version 1.
// Parsing is deliberately permissive: identifiers that merely look
// versioned ("report.vfinal") pass through unchanged so that callers
// using arbitrary identifiers (UUIDs, slugs) are never rejected.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator is the version suffix marker within a prompt identifier.
const Separator = ".v"

// Parse splits a prompt identifier into its base identifier and version
// number. The version is taken from the last ".v<digits>" suffix; when
// the suffix is absent or its remainder is not entirely digits, the
// whole input is the base identifier and the version defaults to 1.
// Parse never fails.
func Parse(promptID string) (string, int) {
	idx := strings.LastIndex(promptID, Separator)
	if idx < 0 {
		return promptID, 1
	}

	suffix := promptID[idx+len(Separator):]
	if !isDigits(suffix) {
		return promptID, 1
	}

	v, err := strconv.Atoi(suffix)
	if err != nil {
		return promptID, 1
	}

	return promptID[:idx], v
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BaseID returns the base identifier with any version suffix stripped.
func BaseID(promptID string) string {
	base, _ := Parse(promptID)
	return base
}

// Number returns the version number encoded in the identifier, or 1
// when no well-formed suffix is present.
func Number(promptID string) int {
	_, v := Parse(promptID)
	return v
}

// Construct builds a versioned identifier from a base identifier and an
// optional version. A nil version returns promptID unchanged, even when
// it already carries a suffix; otherwise any existing suffix is stripped
// before the new one is appended.
func Construct(promptID string, version *int) string {
	if version == nil {
		return promptID
	}

	base, _ := Parse(promptID)
	return fmt.Sprintf("%s%s%d", base, Separator, *version)
}
