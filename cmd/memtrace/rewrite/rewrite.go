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

// Package rewrite implements the source instrumentation tool: the accesses found by the instrumentation passes in
// the lifted program are logged by calls inserted in the Go sources.
package rewrite

import (
	"fmt"
	"os"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis"
	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/srcrewrite"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/tools"
	"github.com/awslabs/ar-go-memtrace/internal/formatutil"
	"github.com/awslabs/ar-go-memtrace/internal/funcutil"
)

const usage = ` Insert the memory access logging calls in the sources of a program.
Usage:
  memtrace rewrite [options] <package path(s)>
Examples:
  % memtrace rewrite -config config.yaml -out instrumented ./kernels
  % memtrace rewrite -passes tflite-memory-profiler -root . -out instrumented ./...
`

// Flags represents the parsed flags of the rewrite tool.
type Flags struct {
	tools.CommonFlags
	passes     string
	level      string
	exclude    tools.ExcludePaths
	outDir     string
	root       string
	noShutdown bool
}

// NewFlags returns the parsed flags of the rewrite tool with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("rewrite")
	passes := flags.FlagSet.String("passes", "", "comma-separated list of passes to run instead of the default pipeline")
	level := flags.FlagSet.String("O", "2", "optimization level of the default pipeline")
	outDir := flags.FlagSet.String("out", "", "directory where the rewritten files are written (print if empty)")
	root := flags.FlagSet.String("root", ".", "root of the sources; files are written at their path relative to it")
	noShutdown := flags.FlagSet.Bool("no-shutdown", false, "do not flush the trace at the end of main")
	var exclude tools.ExcludePaths
	flags.FlagSet.Var(&exclude, "exclude", "file or directory whose functions are not instrumented (repeatable)")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{
		CommonFlags: common,
		passes:      *passes,
		level:       *level,
		outDir:      *outDir,
		root:        *root,
		noShutdown:  *noShutdown,
		exclude:     exclude,
	}, nil
}

// Run runs the rewrite tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	logger := config.NewLogGroup(cfg)
	fmt.Fprintln(os.Stderr, formatutil.Progress("Memtrace rewrite tool - "+analysis.Version))

	p, err := tools.NewPipeline(cfg, logger, flags.passes, flags.level)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, formatutil.Progress("Reading sources"))
	program, lifted, err := tools.LoadLifted(flags.CommonFlags, flags.exclude, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, formatutil.Progress("Instrumenting"))
	res, err := p.Run(lifted.Module)
	if err != nil {
		return err
	}
	scheme, err := p.Scheme()
	if err != nil {
		return err
	}
	rewritten, err := srcrewrite.Rewrite(program, res.Accesses, srcrewrite.Options{
		Scheme:     scheme,
		NoShutdown: flags.noShutdown,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not rewrite sources: %v", err)
	}
	Report(logger, rewritten)

	if flags.outDir == "" {
		for _, name := range rewritten.Files() {
			fmt.Printf("// %s\n", name)
			if err := rewritten.Fprint(os.Stdout, name); err != nil {
				return err
			}
		}
		return nil
	}
	written, err := rewritten.WriteFiles(flags.root, flags.outDir)
	for _, name := range written {
		logger.Debugf("wrote %s", name)
	}
	if err != nil {
		return fmt.Errorf("could not write rewritten files: %v", err)
	}
	logger.Infof("wrote %d files in %s", len(written), flags.outDir)
	return nil
}

// Report logs the number of inserted calls and the reasons the other accesses have been skipped
func Report(logger *config.LogGroup, res *srcrewrite.Result) {
	logger.Infof("RESULT:\n\t\t%s", formatutil.Green(fmt.Sprintf("%d logging calls inserted", res.Inserted)))
	if len(res.Skipped) == 0 {
		return
	}
	reasons := res.SkipReasons()
	var lines []string
	for _, reason := range funcutil.SortedKeys(reasons) {
		lines = append(lines, fmt.Sprintf("\t%4d %s", reasons[reason], reason))
	}
	logger.Warnf("%s:\n%s", formatutil.Yellow(fmt.Sprintf("%d accesses not logged", len(res.Skipped))),
		strings.Join(lines, "\n"))
}
