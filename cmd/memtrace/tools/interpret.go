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

import "regexp"

// A hint is printed after an error whose message matches its pattern
type hint struct {
	pattern *regexp.Regexp
	text    string
}

// hints are tried in order; the first match wins. Flags after the files are reported by the loader as files named
// after the flag, so that case precedes the generic load failure.
var hints = []hint{
	{
		regexp.MustCompile(`could not load program:(?s:.*)named files must be \.go files: -\w`),
		"all command line flags should be before the path to the Go files to instrument",
	},
	{
		regexp.MustCompile("could not load program"),
		"make sure you have provided the right arguments for the tool to load a Go program",
	},
	{
		regexp.MustCompile("could not read config file"),
		"-config expects the path of a YAML file; omit it to use the default settings",
	},
	{
		regexp.MustCompile("unknown pass name"),
		"run `memtrace passes` to list the names of the available passes",
	},
	{
		regexp.MustCompile("target (input|output|arity)"),
		"the target section of the config needs a positive arity and two distinct buffer indices below it",
	},
	{
		regexp.MustCompile("logging hook signature mismatch"),
		"the module already defines the hook with another type; set instrumentation.hook to a free name",
	},
	{
		regexp.MustCompile(`line \d+: (expected "LABEL ADDRESS"|address|invalid address)`),
		"trace files contain one \"LABEL 0xADDRESS\" record per line",
	},
}

// HintForErrorMessage returns a suggestion to fix the error with message errMsg, or "" if there is none.
func HintForErrorMessage(errMsg string) string {
	for _, h := range hints {
		if h.pattern.MatchString(errMsg) {
			return h.text
		}
	}
	return ""
}
