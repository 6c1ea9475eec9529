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

package main

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-go-memtrace/analysis"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/instrument"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/passes"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/report"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/rewrite"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/tools"
)

const usage = `Memtrace: memory access tracing for Go kernels
Usage:
  memtrace [tool] [options] <package path(s)>
Tools:
  - instrument: runs the instrumentation passes on a lifted program or an IR module and prints the result
  - rewrite: inserts the logging calls in the Go sources of a program
  - report: summarizes a trace file written by the runtime sink
  - passes: lists the passes registered by the instrumentation plugin
Examples:
  Instrument a module: memtrace instrument -ir module.yaml
  Rewrite a program: memtrace rewrite -config config.yaml -out instrumented ./cmd/kernel
  Summarize a trace: memtrace report memory_trace.txt`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "instrument":
		flags, err := instrument.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := instrument.Run(flags); err != nil {
			errExit(err)
		}
	case "rewrite":
		flags, err := rewrite.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := rewrite.Run(flags); err != nil {
			errExit(err)
		}
	case "report":
		flags, err := report.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := report.Run(flags); err != nil {
			errExit(err)
		}
	case "passes":
		flags, err := tools.NewCommonFlags("passes", args, passes.Usage)
		if err != nil {
			errExit(err)
		}
		if err := passes.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
