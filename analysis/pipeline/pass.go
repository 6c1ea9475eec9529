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

package pipeline

import (
	"fmt"
	"time"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
)

// A ModulePass runs on a whole module
type ModulePass interface {
	// Name returns the name of the pass in pipelines
	Name() string
	// Run runs the pass on the module and returns the analyses that are still valid. Passes never fail: the
	// errors they encounter are added to the analysis manager.
	Run(m *ir.Module, am *AnalysisManager) PreservedAnalyses
}

// A FunctionPass runs on one function at a time
type FunctionPass interface {
	// Name returns the name of the pass in pipelines
	Name() string
	// Run runs the pass on the function and returns the analyses of the function that are still valid.
	Run(f *ir.Function, am *AnalysisManager) PreservedAnalyses
}

// FunctionPassAdaptor runs a function pass on every function of a module that has a body
type FunctionPassAdaptor struct {
	Pass FunctionPass
}

// Name returns the name of the adapted pass
func (a FunctionPassAdaptor) Name() string { return a.Pass.Name() }

// Run runs the function pass on each function with a body, invalidating the analyses of each function as soon as
// the pass is done with it.
func (a FunctionPassAdaptor) Run(m *ir.Module, am *AnalysisManager) PreservedAnalyses {
	res := PreserveAll()
	for _, f := range m.Functions {
		if f.IsDeclaration() {
			continue
		}
		pa := a.Pass.Run(f, am)
		am.Invalidate(f, pa)
		res = res.Intersect(pa)
	}
	if res.AreAllPreserved() {
		return res
	}
	return res.Preserve(allFunctionAnalyses)
}

// ModulePassManager runs a sequence of module passes
type ModulePassManager struct {
	logger *config.LogGroup
	passes []ModulePass
}

// NewModulePassManager returns an empty pass manager
func NewModulePassManager(logger *config.LogGroup) *ModulePassManager {
	if logger == nil {
		logger = config.NewLogGroup(nil)
	}
	return &ModulePassManager{logger: logger}
}

// AddPass appends a module pass to the pipeline
func (mpm *ModulePassManager) AddPass(p ModulePass) {
	mpm.passes = append(mpm.passes, p)
}

// AddFunctionPass appends a function pass to the pipeline, run on every function of the module
func (mpm *ModulePassManager) AddFunctionPass(p FunctionPass) {
	mpm.passes = append(mpm.passes, FunctionPassAdaptor{Pass: p})
}

// Passes returns the names of the passes, in order
func (mpm *ModulePassManager) Passes() []string {
	names := make([]string, len(mpm.passes))
	for i, p := range mpm.passes {
		names[i] = p.Name()
	}
	return names
}

// IsEmpty returns true if the pipeline has no pass
func (mpm *ModulePassManager) IsEmpty() bool {
	return len(mpm.passes) == 0
}

// Run runs all the passes on m in order and returns the analyses preserved by all of them
func (mpm *ModulePassManager) Run(m *ir.Module, am *AnalysisManager) PreservedAnalyses {
	res := PreserveAll()
	for _, p := range mpm.passes {
		start := time.Now()
		pa := p.Run(m, am)
		am.InvalidateAll(pa)
		mpm.logger.Debugf("pass %s on %s: preserved %s (%.2f ms)", p.Name(), m.Name, pa,
			float64(time.Since(start).Microseconds())/1000)
		res = res.Intersect(pa)
	}
	return res
}

// VerifierPass checks that every function of the module is well-formed
type VerifierPass struct{}

// VerifierPassName is the name of the VerifierPass in pipelines
const VerifierPassName = "verify"

func (VerifierPass) Name() string { return VerifierPassName }

// Run adds an error to the analysis manager for each ill-formed function
func (VerifierPass) Run(m *ir.Module, am *AnalysisManager) PreservedAnalyses {
	for _, f := range m.Functions {
		if err := ir.Verify(f); err != nil {
			am.AddError(fmt.Errorf("verifier: %w", err))
		}
	}
	return PreserveAll()
}
