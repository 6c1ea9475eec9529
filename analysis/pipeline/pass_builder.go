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
	"errors"
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
)

// ErrUnknownPass is returned when a pipeline names a pass that no callback recognizes
var ErrUnknownPass = errors.New("unknown pass name")

// OptimizationLevel is the level the default pipeline is built for
type OptimizationLevel int

const (
	O0 OptimizationLevel = iota
	O1
	O2
	O3
)

func (l OptimizationLevel) String() string { return fmt.Sprintf("O%d", int(l)) }

// ParseOptimizationLevel parses levels written "O2" or "2"
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "O")
	switch s {
	case "0":
		return O0, nil
	case "1":
		return O1, nil
	case "2":
		return O2, nil
	case "3":
		return O3, nil
	}
	return O0, fmt.Errorf("invalid optimization level %q", s)
}

// A PipelineParsingCallback adds the pass called name to mpm and returns true, or returns false if it does not
// know the name.
type PipelineParsingCallback func(name string, mpm *ModulePassManager) bool

// An ExtensionPointCallback adds passes to the default pipeline at an extension point
type ExtensionPointCallback func(mpm *ModulePassManager, level OptimizationLevel)

// PassBuilder builds pass pipelines, either from their textual description or by default. Plugins register
// callbacks in the pass builder to make their passes available.
type PassBuilder struct {
	logger        *config.LogGroup
	parsing       []PipelineParsingCallback
	pipelineStart []ExtensionPointCallback
	optimizerLast []ExtensionPointCallback
	analyses      []func(am *AnalysisManager)
	plugins       []PluginInfo
}

// NewPassBuilder returns a pass builder that knows the built-in passes only
func NewPassBuilder(logger *config.LogGroup) *PassBuilder {
	if logger == nil {
		logger = config.NewLogGroup(nil)
	}
	pb := &PassBuilder{logger: logger}
	pb.RegisterPipelineParsingCallback(func(name string, mpm *ModulePassManager) bool {
		if name == VerifierPassName {
			mpm.AddPass(VerifierPass{})
			return true
		}
		return false
	})
	return pb
}

// RegisterPipelineParsingCallback registers a callback that is asked for every pass name of a parsed pipeline
func (pb *PassBuilder) RegisterPipelineParsingCallback(c PipelineParsingCallback) {
	pb.parsing = append(pb.parsing, c)
}

// RegisterPipelineStartEPCallback registers a callback that adds passes at the start of the default pipeline
func (pb *PassBuilder) RegisterPipelineStartEPCallback(c ExtensionPointCallback) {
	pb.pipelineStart = append(pb.pipelineStart, c)
}

// RegisterOptimizerLastEPCallback registers a callback that adds passes at the end of the default pipeline
func (pb *PassBuilder) RegisterOptimizerLastEPCallback(c ExtensionPointCallback) {
	pb.optimizerLast = append(pb.optimizerLast, c)
}

// RegisterAnalysisRegistrationCallback registers a callback that registers analyses in analysis managers
func (pb *PassBuilder) RegisterAnalysisRegistrationCallback(c func(am *AnalysisManager)) {
	pb.analyses = append(pb.analyses, c)
}

// NewAnalysisManager returns an analysis manager in which all the registered analyses are available
func (pb *PassBuilder) NewAnalysisManager() *AnalysisManager {
	am := NewAnalysisManager(pb.logger)
	for _, c := range pb.analyses {
		c(am)
	}
	return am
}

// ParsePassPipeline adds the passes of the comma-separated list text to mpm. Each name is offered to the parsing
// callbacks in registration order; the first callback that accepts it adds the pass. An error wrapping
// ErrUnknownPass is returned for names no callback accepts.
func (pb *PassBuilder) ParsePassPipeline(mpm *ModulePassManager, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty pipeline")
	}
	for _, name := range strings.Split(text, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("empty pass name in pipeline %q", text)
		}
		if !pb.parsePass(name, mpm) {
			return fmt.Errorf("%w: %q", ErrUnknownPass, name)
		}
	}
	return nil
}

func (pb *PassBuilder) parsePass(name string, mpm *ModulePassManager) bool {
	for _, c := range pb.parsing {
		if c(name, mpm) {
			return true
		}
	}
	return false
}

// BuildDefaultPipeline returns the default pipeline for level: the pipeline start extension point, the verifier,
// then the optimizer last extension point.
func (pb *PassBuilder) BuildDefaultPipeline(level OptimizationLevel) *ModulePassManager {
	mpm := NewModulePassManager(pb.logger)
	for _, c := range pb.pipelineStart {
		c(mpm, level)
	}
	mpm.AddPass(VerifierPass{})
	for _, c := range pb.optimizerLast {
		c(mpm, level)
	}
	return mpm
}
