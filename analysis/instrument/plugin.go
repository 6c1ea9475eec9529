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
	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/pipeline"
)

const (
	// PluginName is the name of the instrumentation plugin
	PluginName = "memtrace"
	// PluginVersion is the version of the instrumentation plugin
	PluginVersion = "0.1.0"
)

// Plugin holds the passes of the instrumentation, once they have been created by the pass builder
type Plugin struct {
	Config *config.Config
	Logger *config.LogGroup

	// Passes are the instrumentation passes added to pipelines, in order
	Passes []pipeline.ModulePass
}

// NewPlugin returns the instrumentation plugin for cfg. It returns an error if the instrumentation settings are
// invalid.
func NewPlugin(cfg *config.Config, logger *config.LogGroup) (*Plugin, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	// check the settings now rather than when the pipeline is built
	if _, err := NewBufferProfilerPass(cfg.Instrumentation, logger); err != nil {
		return nil, err
	}
	if _, err := NewMemoryProfilerPass(cfg.Instrumentation, logger); err != nil {
		return nil, err
	}
	return &Plugin{Config: cfg, Logger: logger}, nil
}

// Info returns the plugin description to load in a pass builder. The plugin registers both passes by name, the
// analyses they use, and inserts the configured default pass at the optimizer last extension point.
func (p *Plugin) Info() pipeline.PluginInfo {
	return pipeline.PluginInfo{
		APIVersion: pipeline.PluginAPIVersion,
		Name:       PluginName,
		Version:    PluginVersion,
		RegisterCallbacks: func(pb *pipeline.PassBuilder) {
			pb.RegisterAnalysisRegistrationCallback(RegisterAnalyses)
			pb.RegisterPipelineParsingCallback(func(name string, mpm *pipeline.ModulePassManager) bool {
				return p.addPass(name, mpm)
			})
			pb.RegisterOptimizerLastEPCallback(func(mpm *pipeline.ModulePassManager, level pipeline.OptimizationLevel) {
				name := p.Config.Instrumentation.DefaultPassName()
				if p.addPass(name, mpm) {
					p.Logger.Debugf("inserted %s at optimizer last (%s)", name, level)
				}
			})
		},
	}
}

// addPass adds the pass called name to mpm, and returns false if no pass of the plugin has that name
func (p *Plugin) addPass(name string, mpm *pipeline.ModulePassManager) bool {
	// the configured pass name designates the pass of the configured mode
	if spec := p.Config.Instrumentation; spec.PassName != "" && name == spec.PassName {
		name = config.FunctionPassName
		if spec.Mode == config.ModeModule {
			name = config.ModulePassName
		}
	}
	switch name {
	case config.FunctionPassName:
		pass, err := NewBufferProfilerPass(p.Config.Instrumentation, p.Logger)
		if err != nil {
			p.Logger.Errorf("could not create %s: %s", name, err)
			return false
		}
		adaptor := pipeline.FunctionPassAdaptor{Pass: pass}
		mpm.AddPass(adaptor)
		p.Passes = append(p.Passes, adaptor)
		return true
	case config.ModulePassName:
		pass, err := NewMemoryProfilerPass(p.Config.Instrumentation, p.Logger)
		if err != nil {
			p.Logger.Errorf("could not create %s: %s", name, err)
			return false
		}
		mpm.AddPass(pass)
		p.Passes = append(p.Passes, pass)
		return true
	}
	return false
}

// Results returns the accesses instrumented by all the passes of the plugin
func (p *Plugin) Results() Result {
	var res Result
	for _, pass := range p.Passes {
		switch pass := pass.(type) {
		case pipeline.FunctionPassAdaptor:
			if bp, ok := pass.Pass.(*BufferProfilerPass); ok {
				res.merge(bp.Results)
			}
		case *MemoryProfilerPass:
			res.merge(pass.Results)
		}
	}
	return res
}
