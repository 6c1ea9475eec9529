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

// Package instrument implements the frontend of the instrumentation passes: it runs a pass pipeline on an IR
// module, or on a Go program lifted to the IR, and prints the instrumented module.
package instrument

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/awslabs/ar-go-memtrace/analysis"
	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/instrument"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/tools"
	"github.com/awslabs/ar-go-memtrace/internal/formatutil"
)

const usage = ` Run the instrumentation passes and print the instrumented module.
Usage:
  memtrace instrument [options] <package path(s)>
  memtrace instrument [options] -ir module.yaml
Examples:
  % memtrace instrument -ir module.yaml -passes tflite-memory-profiler -format yaml
  % memtrace instrument -config config.yaml -O 2 ./kernels/...
`

// Flags represents the parsed flags of the instrument tool.
type Flags struct {
	tools.CommonFlags
	irFile  string
	passes  string
	level   string
	exclude tools.ExcludePaths
	format  string
	outFile string
}

// NewFlags returns the parsed flags of the instrument tool with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("instrument")
	irFile := flags.FlagSet.String("ir", "", "instrument the IR module in this YAML file instead of Go packages")
	passes := flags.FlagSet.String("passes", "", "comma-separated list of passes to run instead of the default pipeline")
	level := flags.FlagSet.String("O", "2", "optimization level of the default pipeline")
	format := flags.FlagSet.String("format", "text", "output format: text or yaml")
	outFile := flags.FlagSet.String("o", "", "output file (standard output if empty)")
	var exclude tools.ExcludePaths
	flags.FlagSet.Var(&exclude, "exclude", "file or directory whose functions are not instrumented (repeatable)")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if *format != "text" && *format != "yaml" {
		return Flags{}, fmt.Errorf("invalid output format %q (expected text or yaml)", *format)
	}
	return Flags{
		CommonFlags: common,
		irFile:      *irFile,
		passes:      *passes,
		level:       *level,
		exclude:     exclude,
		format:      *format,
		outFile:     *outFile,
	}, nil
}

// Run runs the instrument tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	logger := config.NewLogGroup(cfg)
	fmt.Fprintln(os.Stderr, formatutil.Progress("Memtrace instrument tool - "+analysis.Version))

	p, err := tools.NewPipeline(cfg, logger, flags.passes, flags.level)
	if err != nil {
		return err
	}
	logger.Debugf("pipeline: %v", p.Passes.Passes())

	var m *ir.Module
	if flags.irFile != "" {
		fmt.Fprintln(os.Stderr, formatutil.Progress("Reading "+flags.irFile))
		b, err := os.ReadFile(flags.irFile)
		if err != nil {
			return fmt.Errorf("could not read IR module: %v", err)
		}
		if m, err = ir.DecodeModule(b); err != nil {
			return fmt.Errorf("could not decode IR module %s: %v", flags.irFile, err)
		}
	} else {
		fmt.Fprintln(os.Stderr, formatutil.Progress("Reading sources"))
		_, lifted, err := tools.LoadLifted(flags.CommonFlags, flags.exclude, logger)
		if err != nil {
			return err
		}
		m = lifted.Module
	}

	start := time.Now()
	res, runErr := p.Run(m)
	logger.Infof("Instrumentation took %3.4f s", time.Since(start).Seconds())
	Report(logger, res)

	out := io.Writer(os.Stdout)
	if flags.outFile != "" {
		f, err := os.Create(flags.outFile)
		if err != nil {
			return fmt.Errorf("could not create output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := write(out, m, flags.format); err != nil {
		return err
	}
	return runErr
}

func write(w io.Writer, m *ir.Module, format string) error {
	if format == "yaml" {
		b, err := ir.EncodeModule(m)
		if err != nil {
			return fmt.Errorf("could not encode module: %v", err)
		}
		_, err = w.Write(b)
		return err
	}
	return ir.FprintModule(w, m)
}

// Report logs the instrumented accesses and the functions that were skipped
func Report(logger *config.LogGroup, res instrument.Result) {
	for _, a := range res.Accesses {
		logger.Debugf("%s: %s", a.Function().Name(), a)
	}
	for _, name := range res.Skipped {
		logger.Warnf("%s already calls the logging hook, not instrumented", name)
	}
	if !res.Modified {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Yellow("No access instrumented"))
		return
	}
	logger.Infof("RESULT:\n\t\t%s", formatutil.Green(fmt.Sprintf("%d accesses instrumented", len(res.Accesses))))
}
