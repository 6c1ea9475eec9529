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

// Package analysisutil contains utility functions for the tools that load programs.
package analysisutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// MakeAbsolute takes a slice of relative file paths and converts them to absolute paths.
// Any paths that were already absolute are passed through unchanged. A trailing separator is kept, since it
// changes how the path is matched by IsExcluded.
func MakeAbsolute(excludeRelative []string) []string {
	result := make([]string, 0, len(excludeRelative))
	for _, s := range excludeRelative {
		abs, err := filepath.Abs(s)
		if err != nil {
			abs = s
		}
		if strings.HasSuffix(s, "/") && !strings.HasSuffix(abs, "/") {
			abs += "/"
		}
		result = append(result, abs)
	}
	return result
}

func isExcludedOne(filename string, exclude string) bool {
	if strings.HasSuffix(exclude, ".go") {
		return filename == exclude // full match required
	} else if strings.HasSuffix(exclude, "/") {
		return strings.HasPrefix(filename, exclude) // prefix match required
	} else {
		return strings.HasPrefix(filename, exclude+"/") // prefix match plus / required
	}
}

// IsExcluded returns true if the file declaring f is one of the excluded files, or is in one of the excluded
// directories. Functions without a position are never excluded.
func IsExcluded(program *ssa.Program, f *ssa.Function, exclude []string) bool {
	if !f.Pos().IsValid() {
		return false
	}
	filename := program.Fset.Position(f.Pos()).Filename
	for _, e := range exclude {
		if isExcludedOne(filename, e) {
			return true
		}
	}
	return false
}

// ExcludeFilter returns filter restricted to the functions that are not declared in the excluded paths. The
// paths are made absolute first.
func ExcludeFilter(program *ssa.Program, exclude []string, filter func(*ssa.Function) bool) func(*ssa.Function) bool {
	if len(exclude) == 0 {
		return filter
	}
	abs := MakeAbsolute(exclude)
	return func(f *ssa.Function) bool {
		return filter(f) && !IsExcluded(program, f, abs)
	}
}
