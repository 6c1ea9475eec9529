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

// Package report implements the trace summary tool.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
	"github.com/awslabs/ar-go-memtrace/cmd/memtrace/tools"
	"github.com/awslabs/ar-go-memtrace/internal/formatutil"
)

const usage = ` Summarize the trace files written by the runtime sink.
Usage:
  memtrace report [options] [trace file(s)]
If no file is given, the trace path of the config is read.
Examples:
  % memtrace report memory_trace.txt
  % memtrace report -json -overlap INPUT,OUTPUT memory_trace.txt
`

// Flags represents the parsed flags of the report tool.
type Flags struct {
	tools.CommonFlags
	json    bool
	records bool
	overlap string
}

// NewFlags returns the parsed flags of the report tool with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("report")
	asJSON := flags.FlagSet.Bool("json", false, "print the summary as JSON")
	records := flags.FlagSet.Bool("records", false, "print every record before the summary")
	overlap := flags.FlagSet.String("overlap", "", "two comma-separated labels; print the addresses recorded under both")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if *overlap != "" && len(strings.Split(*overlap, ",")) != 2 {
		return Flags{}, fmt.Errorf("-overlap expects two labels, got %q", *overlap)
	}
	return Flags{CommonFlags: common, json: *asJSON, records: *records, overlap: *overlap}, nil
}

// Output is the JSON form of a report
type Output struct {
	*tracefile.Summary
	Overlap []string `json:"overlap,omitempty"`
}

// Run runs the report tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	files := flags.FlagSet.Args()
	if len(files) == 0 {
		files = []string{cfg.Sink.Path}
	}
	var records []tracefile.Record
	for _, name := range files {
		recs, err := readFile(name)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}
	return Write(os.Stdout, records, flags)
}

func readFile(name string) ([]tracefile.Record, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open trace: %v", err)
	}
	defer f.Close()
	records, err := tracefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("could not read trace %s: %v", name, err)
	}
	return records, nil
}

// Write writes the report of records to w
func Write(w io.Writer, records []tracefile.Record, flags Flags) error {
	summary := tracefile.Summarize(records)
	var overlap []uint64
	var pair []string
	if flags.overlap != "" {
		pair = strings.Split(flags.overlap, ",")
		overlap = summary.Overlap(strings.TrimSpace(pair[0]), strings.TrimSpace(pair[1]))
	}

	if flags.json {
		out := Output{Summary: summary}
		for _, a := range overlap {
			out.Overlap = append(out.Overlap, fmt.Sprintf("0x%x", a))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if flags.records {
		for _, r := range records {
			fmt.Fprintf(w, "%s 0x%x\n", formatutil.LabelStyle(r.Label)(r.Label), r.Address)
		}
	}
	summary.Fprint(w)
	if pair != nil {
		fmt.Fprintf(w, "%d addresses recorded as both %s and %s\n", len(overlap), pair[0], pair[1])
		for _, a := range overlap {
			fmt.Fprintf(w, "  0x%x\n", a)
		}
	}
	return nil
}
