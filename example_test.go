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

package mapping_test

import (
	"fmt"
	"net/http"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/constraint"
)

// ExampleBuild demonstrates building a table and resolving a path.
func ExampleBuild() {
	table, err := mapping.Build([]mapping.RuleSpec{
		{
			Pattern:    "/books/(*)",
			Controller: mapping.Literal("book"),
			Action:     mapping.Literal("show"),
			Captures:   []mapping.Capture{{Name: "id", Validator: constraint.Int()}},
		},
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer table.Close()

	m := table.Match("/books/42")
	fmt.Println(m.ControllerName(), m.ActionName(), m.Params["id"])
	// Output: book show 42
}

// ExampleTable_BuildURL demonstrates reverse URL building.
func ExampleTable_BuildURL() {
	table, err := mapping.Build([]mapping.RuleSpec{
		{Pattern: "/$controller/$action?/$id?"},
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer table.Close()

	u, err := table.BuildURL("book", "show", map[string]any{"id": 5, "format": "json"}, "")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(u)
	// Output: /book/show/5?format=json
}

// ExampleTable_MatchStatusCode demonstrates status code rules.
func ExampleTable_MatchStatusCode() {
	table, err := mapping.Build([]mapping.RuleSpec{
		{Status: http.StatusNotFound, View: mapping.Literal("notFound")},
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer table.Close()

	fmt.Println(table.MatchStatusCode(http.StatusNotFound).ViewName())
	// Output: notFound
}
