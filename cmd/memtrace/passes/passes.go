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

// Package passes implements the tool listing the passes known to the pass builder.
package passes

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/pipeline"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/tools"
	"github.com/awslabs/ar-go-memtrace/internal/formatutil"
	"golang.org/x/exp/slices"
)

// Usage is the usage of the passes tool
const Usage = ` List the passes that can be named in a pipeline and the default pipelines.
Usage:
  memtrace passes [options]
Examples:
  % memtrace passes -config config.yaml
`

// Run runs the passes tool with flags.
func Run(flags tools.CommonFlags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	return Fprint(os.Stdout, cfg)
}

// Fprint writes the loaded plugins, the pass names they accept and the default pipeline of each optimization
// level for cfg.
func Fprint(w io.Writer, cfg *config.Config) error {
	logger := config.NewLogGroup(cfg)
	p, err := tools.NewPipeline(cfg, logger, "", "0")
	if err != nil {
		return err
	}
	pb := p.Builder
	for _, info := range pb.Plugins() {
		fmt.Fprintf(w, "%s %s\n", formatutil.Bold("plugin"), formatutil.Bold(info.Name+" "+info.Version))
	}

	candidates := []string{pipeline.VerifierPassName, config.FunctionPassName, config.ModulePassName}
	if name := cfg.Instrumentation.PassName; name != "" && !slices.Contains(candidates, name) {
		candidates = append(candidates, name)
	}
	fmt.Fprintln(w, "passes:")
	for _, name := range candidates {
		if err := pb.ParsePassPipeline(pipeline.NewModulePassManager(logger), name); err == nil {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	fmt.Fprintln(w, "default pipelines:")
	for _, level := range []pipeline.OptimizationLevel{pipeline.O0, pipeline.O1, pipeline.O2, pipeline.O3} {
		fmt.Fprintf(w, "  %s: %s\n", level, strings.Join(pb.BuildDefaultPipeline(level).Passes(), ","))
	}
	return nil
}
