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

package analysistest

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-memtrace/analysis"
	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"
)

// LoadTestOptions are the options of LoadTest
type LoadTestOptions struct {
	// Platform is the GOOS of the program, if not empty
	Platform string
	// BuildMode is the SSA build mode
	BuildMode ssa.BuilderMode
	// Tests loads the test files too
	Tests bool
}

// LoadedTestProgram is a program loaded for a test, with its configuration
type LoadedTestProgram struct {
	analysis.LoadedProgram
	Config *config.Config
	Dir    string
}

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too. Without config.yaml, the default
// config is used.
func LoadTest(t *testing.T, dir string, extraFiles []string, opts LoadTestOptions) LoadedTestProgram {
	t.Helper()
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	program, err := analysis.LoadProgram(nil, opts.Platform, opts.BuildMode, opts.Tests, files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}

	cfg := config.NewDefault()
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		cfg, err = config.LoadFromFiles(configFile)
		if err != nil {
			t.Fatalf("error loading config: %v", err)
		}
	}
	return LoadedTestProgram{LoadedProgram: program, Config: cfg, Dir: dir}
}

// AccessRegex matches annotations of the form "@Access(LABEL1, LABEL2)"
var AccessRegex = regexp.MustCompile(`//.*@Access\(((?:\s*\w+\s*,?)+)\)`)

// LPos is a position without column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// RemoveColumn drops the column of the position
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: pos.Filename}
}

// Labels counts the labels of the accesses on each line
type Labels map[LPos]map[string]int

// Add records one access with the label at pos
func (l Labels) Add(pos LPos, label string) {
	if l[pos] == nil {
		l[pos] = map[string]int{}
	}
	l[pos][label]++
}

// Diff returns a description of each line where the two sets of labels differ, sorted by position.
func (l Labels) Diff(actual Labels) []string {
	var res []string
	seen := map[LPos]bool{}
	check := func(pos LPos) {
		if seen[pos] {
			return
		}
		seen[pos] = true
		if !sameCounts(l[pos], actual[pos]) {
			res = append(res, fmt.Sprintf("%s: expected %v, got %v", pos, l[pos], actual[pos]))
		}
	}
	for pos := range l {
		check(pos)
	}
	for pos := range actual {
		check(pos)
	}
	slices.Sort(res)
	return res
}

func sameCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, n := range a {
		if b[k] != n {
			return false
		}
	}
	return true
}

// GetExpectedAccesses looks for comments @Access(LABEL, ...) in the syntax of the loaded packages and returns, for
// each annotated line, the number of accesses expected with each label. A label repeated n times means n accesses.
func GetExpectedAccesses(program analysis.LoadedProgram) Labels {
	res := Labels{}
	for _, pkg := range program.Packages {
		for _, f := range pkg.Syntax {
			for _, c := range f.Comments {
				for _, c1 := range c.List {
					a := AccessRegex.FindStringSubmatch(c1.Text)
					if len(a) <= 1 {
						continue
					}
					pos := RemoveColumn(program.Program.Fset.Position(c1.Pos()))
					for _, label := range strings.Split(a[1], ",") {
						res.Add(pos, strings.TrimSpace(label))
					}
				}
			}
		}
	}
	return res
}
