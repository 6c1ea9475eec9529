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

// Package formatutil contains the terminal styles of the command line output.
package formatutil

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// A Style formats its arguments like fmt.Sprint, wrapped in an escape sequence when the output is a terminal
type Style func(...any) string

var (
	Bold   = NewStyle("1", os.Stdout)
	Faint  = NewStyle("2", os.Stdout)
	Red    = NewStyle("1;31", os.Stdout)
	Green  = NewStyle("1;32", os.Stdout)
	Yellow = NewStyle("1;33", os.Stdout)
	Cyan   = NewStyle("1;36", os.Stdout)

	// Progress styles the progress lines written to stderr
	Progress = NewStyle("2", os.Stderr)
)

// NewStyle returns the style with the SGR parameters code, for output written to f
func NewStyle(code string, f *os.File) Style {
	tty := f != nil && term.IsTerminal(int(f.Fd()))
	return func(args ...any) string {
		s := fmt.Sprint(args...)
		if !tty {
			return s
		}
		return "\033[" + code + "m" + s + "\033[0m"
	}
}

// LabelStyle returns the style of a trace label: reads in green, writes in red, anything else in yellow
func LabelStyle(label string) Style {
	switch strings.ToUpper(label) {
	case "INPUT", "LOAD":
		return Green
	case "OUTPUT", "STORE":
		return Red
	default:
		return Yellow
	}
}

// Sanitize removes the escape sequences of s
func Sanitize(s string) string {
	r := fmt.Sprintf("%q", s)
	return r[1 : len(r)-1]
}
