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

// Package archive stores the state of the replicas after the last sync pass.
//
// The archive is a directory holding one file per replica directory that has
// ever been scanned. Each file is named after the decimal hash of the
// directory's relative path and contains:
//
//	[u32 little-endian ArchiveVersion][msgpack map: HashedPath -> Row]
//
// A missing file is the same as an empty table. Tables that become empty are
// deleted rather than written, so the archive size follows live divergence.
//
// Every opened File holds an exclusive advisory lock until Close, which gives
// each directory's archive a total order of access across threads and
// processes sharing the archive directory.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"replicasync/internal/common"
)

// Archive is a directory-addressable factory for archive files.
type Archive struct {
	directory string
}

// New prepares directory (creating it if needed) for reading and writing
// archive files.
func New(directory string) (*Archive, error) {
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return nil, fmt.Errorf("%w: failed to create archive directory %s: %w", common.ErrIO, directory, err)
	}
	return &Archive{directory: directory}, nil
}

// Directory returns the backing directory.
func (a *Archive) Directory() string {
	return a.directory
}

// ForDirectory returns the (not yet opened) archive file describing the
// replica directory dir.
func (a *Archive) ForDirectory(dir string) *File {
	return a.ForHashedDirectory(Hash(dir))
}

// ForHashedDirectory is ForDirectory for an already hashed directory.
func (a *Archive) ForHashedDirectory(hashed HashedPath) *File {
	return newFile(filepath.Join(a.directory, strconv.FormatUint(hashed, 10)))
}

// Hashes lists the hashed directories that currently have an archive file.
// Names that are not decimal hashes are skipped.
func (a *Archive) Hashes() ([]HashedPath, error) {
	items, err := os.ReadDir(a.directory)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list archive directory %s: %w", common.ErrIO, a.directory, err)
	}
	var hashes []HashedPath
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		h, err := strconv.ParseUint(item.Name(), 10, 64)
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)
	return hashes, nil
}
