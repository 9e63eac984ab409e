// Copyright 2024 Replicasync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"path/filepath"
	"strings"
)

// NormalizePath cleans a replica-relative path, removing leading/trailing slashes.
// The replica root itself normalizes to the empty string.
func NormalizePath(path string) string {
	path = filepath.Clean(path)
	path = strings.TrimPrefix(path, string(filepath.Separator))
	path = strings.TrimSuffix(path, string(filepath.Separator))
	if path == "." {
		return ""
	}
	return path
}

// JoinPath joins path components into a normalized relative path
func JoinPath(parts ...string) string {
	return NormalizePath(filepath.Join(parts...))
}

// IsWithin reports whether rel lies inside the replica (no ".." escape).
func IsWithin(rel string) bool {
	rel = NormalizePath(rel)
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
