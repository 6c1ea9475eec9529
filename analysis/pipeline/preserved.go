// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

// Package pipeline contains the pass pipeline the instrumentation runs in: passes over modules and functions,
// an analysis manager caching per-function results, and a pass builder that parses pipelines by name and
// builds the default pipeline from its extension points.
package pipeline

import (
	"strings"

	"github.com/awslabs/ar-go-memtrace/internal/funcutil"
)

// PreservedAnalyses is the set of analyses that are still valid after a pass has run
type PreservedAnalyses struct {
	all  bool
	kept map[string]bool
}

// allFunctionAnalyses is preserved by passes that already invalidated the analyses of the functions they modified
const allFunctionAnalyses = "function-analyses"

// PreserveAll returns the set of all analyses: the pass did not modify anything
func PreserveAll() PreservedAnalyses {
	return PreservedAnalyses{all: true}
}

// PreserveNone returns the empty set: every cached analysis must be invalidated
func PreserveNone() PreservedAnalyses {
	return PreservedAnalyses{}
}

// Preserve returns a copy of p in which the analysis name is preserved
func (p PreservedAnalyses) Preserve(name string) PreservedAnalyses {
	if p.all {
		return p
	}
	kept := make(map[string]bool, len(p.kept)+1)
	for k := range p.kept {
		kept[k] = true
	}
	kept[name] = true
	return PreservedAnalyses{kept: kept}
}

// AreAllPreserved returns true if no analysis needs to be invalidated
func (p PreservedAnalyses) AreAllPreserved() bool {
	return p.all
}

// IsPreserved returns true if the analysis name is still valid
func (p PreservedAnalyses) IsPreserved(name string) bool {
	return p.all || p.kept[name] || p.kept[allFunctionAnalyses]
}

// Intersect returns the analyses preserved by both p and q
func (p PreservedAnalyses) Intersect(q PreservedAnalyses) PreservedAnalyses {
	switch {
	case p.all:
		return q
	case q.all:
		return p
	}
	res := PreservedAnalyses{kept: map[string]bool{}}
	for k := range p.kept {
		if q.kept[k] {
			res.kept[k] = true
		}
	}
	return res
}

func (p PreservedAnalyses) String() string {
	if p.all {
		return "all"
	}
	if len(p.kept) == 0 {
		return "none"
	}
	return "{" + strings.Join(funcutil.SortedKeys(p.kept), ", ") + "}"
}
