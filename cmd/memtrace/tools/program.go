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

package tools

import (
	"fmt"

	"github.com/awslabs/ar-go-memtrace/analysis"
	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ssair"
	"github.com/awslabs/ar-go-memtrace/internal/analysisutil"
	"golang.org/x/tools/go/ssa"
)

// LoadLifted loads the Go packages named by the positional arguments of flags and lifts the functions of these
// packages to the instrumentation IR. Functions declared in the exclude paths are not lifted.
func LoadLifted(flags CommonFlags, exclude ExcludePaths,
	logger *config.LogGroup) (analysis.LoadedProgram, *ssair.Lifted, error) {
	if flags.FlagSet.NArg() == 0 {
		return analysis.LoadedProgram{}, nil, fmt.Errorf("could not load program: no package given")
	}
	program, err := analysis.LoadProgram(nil, "", ssa.InstantiateGenerics, flags.WithTest, flags.FlagSet.Args())
	if err != nil {
		return analysis.LoadedProgram{}, nil, fmt.Errorf("could not load program: %v", err)
	}
	logger.Debugf("loaded %d packages", len(program.Packages))
	filter := analysisutil.ExcludeFilter(program.Program, exclude, ssair.PackageFilter(program.SSAPackages()...))
	lifted, err := ssair.LiftProgram(program.Program, filter)
	if err != nil {
		return program, nil, fmt.Errorf("could not lift program: %v", err)
	}
	logger.Debugf("lifted %d functions", len(lifted.Funcs))
	return program, lifted, nil
}
