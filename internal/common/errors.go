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

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPath   = errors.New("invalid path")
	ErrIO            = errors.New("I/O error")
	ErrCorrupt       = errors.New("corrupt archive data")
	ErrLocked        = errors.New("lock acquisition failed")
	ErrRowWidth      = errors.New("row width does not match replica count")
	ErrRootMissing   = errors.New("root does not exist")
	ErrTooFewRoots   = errors.New("at least two roots are required")
	ErrDuplicateRoot = errors.New("duplicate root")
)
