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
	"cmp"
	"slices"

	"rivaas.dev/mapping/compiler"
)

// Compare orders two path rules by precedence. A negative result means a is
// tried before b. The criteria apply in order:
//
//  0. The root pattern comes first. A pattern with no literal token comes
//     after every pattern that has one.
//  1. Fewer multi-segment wildcards.
//  2. Fewer single-segment wildcards.
//  3. More literal tokens.
//  4. At the first position where one pattern has a literal and the other a
//     wildcard, the literal wins. Positions past a pattern's end count as
//     wildcards.
//  5. More applied constraints.
//
// Equal rules compare as 0; [SortRules] then keeps registration order.
func Compare(a, b *Rule) int {
	pa, pb := a.pattern, b.pattern

	aRoot, bRoot := pa.TokenCount() == 0, pb.TokenCount() == 0
	switch {
	case aRoot && bRoot:
		return 0
	case aRoot:
		return -1
	case bRoot:
		return 1
	}

	as, bs := pa.StaticCount(), pb.StaticCount()
	switch {
	case as == 0 && bs > 0:
		return 1
	case bs == 0 && as > 0:
		return -1
	}

	if c := cmp.Compare(pa.DoubleWildcardCount(), pb.DoubleWildcardCount()); c != 0 {
		return c
	}
	if c := cmp.Compare(pa.SingleWildcardCount(), pb.SingleWildcardCount()); c != 0 {
		return c
	}
	if c := cmp.Compare(bs, as); c != 0 {
		return c
	}
	if c := compareTokens(pa.Tokens(), pb.Tokens()); c != 0 {
		return c
	}

	return cmp.Compare(b.constraints, a.constraints)
}

func compareTokens(a, b []compiler.Token) int {
	for i := range max(len(a), len(b)) {
		aLit := i < len(a) && a[i].IsStatic()
		bLit := i < len(b) && b[i].IsStatic()
		switch {
		case aLit && !bLit:
			return -1
		case bLit && !aLit:
			return 1
		}
	}

	return 0
}

// SortRules orders path rules by precedence, breaking ties by registration
// order.
func SortRules(rules []*Rule) {
	slices.SortFunc(rules, func(a, b *Rule) int {
		if c := Compare(a, b); c != 0 {
			return c
		}

		return cmp.Compare(a.order, b.order)
	})
}
