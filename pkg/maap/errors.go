// Copyright 2019-2025 The Liqo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package maap

import (
	"errors"
	"fmt"

	"github.com/liqotech/maap/pkg/maap/pool"
)

var (
	// ErrExhausted is returned when the pool holds no free block of the requested size.
	ErrExhausted = pool.ErrExhausted
	// ErrUnavailable is returned when the requested base address is not free.
	ErrUnavailable = pool.ErrUnavailable
	// ErrTooManyRanges is returned when the port already holds the maximum number of ranges.
	ErrTooManyRanges = fmt.Errorf("too many ranges on port: %w", pool.ErrExhausted)
	// ErrConflictRetriesExhausted is returned when a session met too many conflicts to keep retrying.
	ErrConflictRetriesExhausted = errors.New("conflict retries exhausted")
	// ErrTransportFailure is returned when the port can no longer send or receive frames.
	ErrTransportFailure = errors.New("transport failure")
	// ErrInvalidRequest is returned when an allocation request cannot be satisfied by any pool state.
	ErrInvalidRequest = errors.New("invalid allocation request")
	// ErrCanceled is returned to clients whose request was canceled before being accepted.
	ErrCanceled = errors.New("acquisition canceled")
	// ErrEngineStopped is returned when the engine is not running.
	ErrEngineStopped = errors.New("engine stopped")
)
