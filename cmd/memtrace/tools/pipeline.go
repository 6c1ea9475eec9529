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

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/instrument"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/analysis/pipeline"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
)

// Pipeline is a pass pipeline with the instrumentation plugin loaded
type Pipeline struct {
	Builder *pipeline.PassBuilder
	Passes  *pipeline.ModulePassManager
	Plugin  *instrument.Plugin
}

// NewPipeline builds the pipeline of a tool run. If passes is not empty, it is parsed as a comma-separated list of
// pass names. Otherwise, the default pipeline of the optimization level is built.
func NewPipeline(cfg *config.Config, logger *config.LogGroup, passes string, level string) (*Pipeline, error) {
	plugin, err := instrument.NewPlugin(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid instrumentation settings: %w", err)
	}
	pb := pipeline.NewPassBuilder(logger)
	if err := pb.LoadPlugin(plugin.Info()); err != nil {
		return nil, err
	}
	var mpm *pipeline.ModulePassManager
	if passes != "" {
		mpm = pipeline.NewModulePassManager(logger)
		if err := pb.ParsePassPipeline(mpm, passes); err != nil {
			return nil, fmt.Errorf("invalid pass pipeline: %w", err)
		}
	} else {
		lvl, err := pipeline.ParseOptimizationLevel(level)
		if err != nil {
			return nil, err
		}
		mpm = pb.BuildDefaultPipeline(lvl)
	}
	return &Pipeline{Builder: pb, Passes: mpm, Plugin: plugin}, nil
}

// Run runs the pipeline on m and returns the accesses instrumented by the plugin. The accesses instrumented before
// a pass reported an error are returned along with the error.
func (p *Pipeline) Run(m *ir.Module) (instrument.Result, error) {
	am := p.Builder.NewAnalysisManager()
	p.Passes.Run(m, am)
	if err := am.CheckError(); err != nil {
		return p.Plugin.Results(), fmt.Errorf("instrumentation failed: %w", err)
	}
	return p.Plugin.Results(), nil
}

// Scheme returns the tag scheme of the last instrumentation pass of the pipeline, or the scheme of the configured
// mode if the pipeline has no instrumentation pass.
func (p *Pipeline) Scheme() (tracefile.Scheme, error) {
	for i := len(p.Plugin.Passes) - 1; i >= 0; i-- {
		var pass any = p.Plugin.Passes[i]
		if a, ok := pass.(pipeline.FunctionPassAdaptor); ok {
			pass = a.Pass
		}
		if s, ok := pass.(interface{ Scheme() tracefile.Scheme }); ok {
			return s.Scheme(), nil
		}
	}
	return tracefile.SchemeByName(p.Plugin.Config.Instrumentation.SchemeName())
}
