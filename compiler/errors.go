// Copyright 2025 The Rivaas Authors
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

package compiler

import (
	"errors"
	"fmt"
)

// ErrInvalidPattern is the sentinel matched by every [InvalidPatternError].
var ErrInvalidPattern = errors.New("invalid URL pattern")

// InvalidPatternError reports a pattern that cannot be tokenized or compiled.
type InvalidPatternError struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid URL pattern %q: %s: %v", e.Pattern, e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid URL pattern %q: %s", e.Pattern, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidPattern) succeed.
func (e *InvalidPatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

// Unwrap returns the underlying regexp error, if any.
func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

func invalid(pattern, format string, args ...any) *InvalidPatternError {
	return &InvalidPatternError{Pattern: pattern, Reason: fmt.Sprintf(format, args...)}
}
