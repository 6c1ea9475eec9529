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

package instrument

import (
	"fmt"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/analysis/pipeline"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
)

// OffsetChainsAnalysis is the name of the analysis computing the depth of each offset computation of a function.
// Its result is a map[*ir.OffsetAddr]int; it fails on functions with cyclic offset chains.
const OffsetChainsAnalysis = "offset-chains"

// RegisterAnalyses registers the analyses used by the instrumentation passes
func RegisterAnalyses(am *pipeline.AnalysisManager) {
	if am.IsRegistered(OffsetChainsAnalysis) {
		return
	}
	_ = am.RegisterAnalysis(OffsetChainsAnalysis, func(f *ir.Function, _ *pipeline.AnalysisManager) (any, error) {
		return ir.OffsetChainDepths(f)
	})
}

// chainCheck returns a function checking the offset chains through the analysis manager, when it has the analysis
func chainCheck(am *pipeline.AnalysisManager) func(f *ir.Function) error {
	return func(f *ir.Function) error {
		if !am.IsRegistered(OffsetChainsAnalysis) {
			_, err := ir.OffsetChainDepths(f)
			return err
		}
		_, err := pipeline.GetResultAs[map[*ir.OffsetAddr]int](am, OffsetChainsAnalysis, f)
		return err
	}
}

// BufferProfilerPass is the function pass that instruments the input and output buffer accesses of the target
// function. Other functions are left untouched.
type BufferProfilerPass struct {
	selector *Selector
	rewriter *Rewriter
	logger   *config.LogGroup
	// Results accumulates the results of the runs of the pass
	Results Result
}

// NewBufferProfilerPass returns the target function pass for spec. The buffer scheme is used unless spec names
// another scheme.
func NewBufferProfilerPass(spec config.InstrumentationSpec, logger *config.LogGroup) (*BufferProfilerPass, error) {
	spec.Mode = config.ModeFunction
	selector, err := NewSelector(spec, logger)
	if err != nil {
		return nil, err
	}
	rewriter, err := NewRewriter(spec, logger)
	if err != nil {
		return nil, err
	}
	return &BufferProfilerPass{selector: selector, rewriter: rewriter, logger: rewriter.logger}, nil
}

// Name returns the pipeline name of the pass
func (p *BufferProfilerPass) Name() string { return config.FunctionPassName }

// Scheme returns the tag scheme of the pass
func (p *BufferProfilerPass) Scheme() tracefile.Scheme { return p.rewriter.Scheme() }

// Run instruments f if it is the target. It preserves all analyses unless it inserted a logging call.
func (p *BufferProfilerPass) Run(f *ir.Function, am *pipeline.AnalysisManager) pipeline.PreservedAnalyses {
	target, ok := p.selector.Select(f).Get()
	if !ok {
		return pipeline.PreserveAll()
	}
	p.rewriter.checkChains = chainCheck(am)
	res, err := p.rewriter.InstrumentFunction(target)
	if err != nil {
		p.logger.Errorf("%s: %s", p.Name(), err)
		am.AddError(fmt.Errorf("%s: %w", p.Name(), err))
		return pipeline.PreserveAll()
	}
	p.Results.merge(res)
	if !res.Modified {
		return pipeline.PreserveAll()
	}
	p.logger.Infof("%s: instrumented %s: %d %s, %d %s", p.Name(), target,
		res.Count(tracefile.TagInput), p.rewriter.scheme.Label(tracefile.TagInput),
		res.Count(tracefile.TagOutput), p.rewriter.scheme.Label(tracefile.TagOutput))
	return pipeline.PreserveNone()
}

// MemoryProfilerPass is the module pass that instruments every load and store of the module, except in the
// logging hook and the excluded functions.
type MemoryProfilerPass struct {
	rewriter *Rewriter
	logger   *config.LogGroup
	// Results accumulates the results of the runs of the pass
	Results Result
}

// NewMemoryProfilerPass returns the whole-module pass for spec. The access scheme is used unless spec names
// another scheme or asks for the legacy labels.
func NewMemoryProfilerPass(spec config.InstrumentationSpec, logger *config.LogGroup) (*MemoryProfilerPass, error) {
	spec.Mode = config.ModeModule
	rewriter, err := NewRewriter(spec, logger)
	if err != nil {
		return nil, err
	}
	return &MemoryProfilerPass{rewriter: rewriter, logger: rewriter.logger}, nil
}

// Name returns the pipeline name of the pass
func (p *MemoryProfilerPass) Name() string { return config.ModulePassName }

// Scheme returns the tag scheme of the pass
func (p *MemoryProfilerPass) Scheme() tracefile.Scheme { return p.rewriter.Scheme() }

// Run instruments m. It preserves all analyses unless it inserted a logging call.
func (p *MemoryProfilerPass) Run(m *ir.Module, am *pipeline.AnalysisManager) pipeline.PreservedAnalyses {
	p.rewriter.checkChains = chainCheck(am)
	res, err := p.rewriter.InstrumentModule(m)
	if err != nil {
		p.logger.Errorf("%s: %s", p.Name(), err)
		am.AddError(fmt.Errorf("%s: %w", p.Name(), err))
	}
	p.Results.merge(res)
	if !res.Modified {
		return pipeline.PreserveAll()
	}
	p.logger.Infof("%s: instrumented %s: %d %s, %d %s", p.Name(), m.Name,
		res.Count(tracefile.TagLoad), p.rewriter.scheme.Label(tracefile.TagLoad),
		res.Count(tracefile.TagStore), p.rewriter.scheme.Label(tracefile.TagStore))
	return pipeline.PreserveNone()
}
