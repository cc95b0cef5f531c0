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

package mapping

import (
	"errors"
	"fmt"

	"rivaas.dev/mapping/compiler"
)

var (
	// ErrInvalidPattern matches every pattern that fails to tokenize or compile.
	ErrInvalidPattern = compiler.ErrInvalidPattern

	// ErrInvalidRule indicates a rule descriptor that cannot be registered.
	ErrInvalidRule = errors.New("invalid mapping rule")

	// ErrDuplicateRuleName indicates two rules registered under the same name.
	ErrDuplicateRuleName = errors.New("duplicate mapping rule name")

	// ErrTableFrozen indicates a registration attempt after Initialize.
	ErrTableFrozen = errors.New("mapping table already initialized")

	// ErrTableNotInitialized indicates a lookup before Initialize.
	ErrTableNotInitialized = errors.New("mapping table not initialized")

	// ErrNoReverseMapping indicates that no rule can render the requested URL
	// and the default form is unavailable.
	ErrNoReverseMapping = errors.New("no reverse mapping")

	// ErrMissingRequiredParameter matches every MissingRequiredParameterError.
	ErrMissingRequiredParameter = errors.New("missing required parameter")

	// ErrUnsupportedEncoding indicates an unknown character encoding name.
	ErrUnsupportedEncoding = errors.New("unsupported character encoding")

	// ErrInvalidParameter indicates a parameter value that cannot be rendered.
	ErrInvalidParameter = errors.New("invalid parameter value")
)

// InvalidPatternError reports a malformed pattern.
type InvalidPatternError = compiler.InvalidPatternError

// MissingRequiredParameterError reports a non-nullable capture with no value
// during URL building.
type MissingRequiredParameterError struct {
	Param   string
	Pattern string
}

func (e *MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q for pattern %q", e.Param, e.Pattern)
}

// Is makes errors.Is(err, ErrMissingRequiredParameter) succeed.
func (e *MissingRequiredParameterError) Is(target error) bool {
	return target == ErrMissingRequiredParameter
}
