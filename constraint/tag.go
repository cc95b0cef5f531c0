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

package constraint

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	tagValidator     *validator.Validate
	tagValidatorOnce sync.Once
)

func tags() *validator.Validate {
	tagValidatorOnce.Do(func() {
		tagValidator = validator.New(validator.WithRequiredStructEnabled())
	})

	return tagValidator
}

// Tag validates values with a go-playground/validator tag such as
// "alphanum,min=3" or "oneof=asc desc". Values are not converted.
type Tag struct {
	tag      string
	rules    int
	nullable bool
}

// NewTag returns a validator enforcing tag. A tag containing "omitempty"
// makes the parameter nullable.
func NewTag(tag string) *Tag {
	t := &Tag{tag: tag}
	for rule := range strings.SplitSeq(tag, ",") {
		rule = strings.TrimSpace(rule)
		switch rule {
		case "":
		case "omitempty":
			t.nullable = true
		default:
			t.rules++
		}
	}

	return t
}

// Validate implements [Validator].
func (t *Tag) Validate(raw string) (any, bool) {
	if err := tags().Var(raw, t.tag); err != nil {
		return nil, false
	}

	return raw, true
}

// Nullable implements [Validator].
func (t *Tag) Nullable() bool { return t.nullable }

// AppliedConstraints implements [Counter].
func (t *Tag) AppliedConstraints() int { return t.rules }

// String returns the tag.
func (t *Tag) String() string { return t.tag }
