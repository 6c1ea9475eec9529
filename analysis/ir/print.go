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

package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the text of function f to w
func Fprint(w io.Writer, f *Function) error {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	header := fmt.Sprintf("@%s(%s) %s", f.name, strings.Join(params, ", "), f.Result)
	if f.IsDeclaration() {
		_, err := fmt.Fprintf(w, "declare %s\n", header)
		return err
	}
	if _, err := fmt.Fprintf(w, "func %s {\n", header); err != nil {
		return err
	}
	for _, b := range f.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n", b); err != nil {
			return err
		}
		for _, instr := range b.Instrs {
			if _, err := fmt.Fprintf(w, "  %s\n", InstrString(instr)); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// FprintModule writes the text of all the functions of m to w
func FprintModule(w io.Writer, m *Module) error {
	if _, err := fmt.Fprintf(w, "module %s\n", m.Name); err != nil {
		return err
	}
	for _, f := range m.Functions {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := Fprint(w, f); err != nil {
			return err
		}
	}
	return nil
}

// String returns the text of function f
func (f *Function) String() string {
	var b strings.Builder
	_ = Fprint(&b, f)
	return b.String()
}

// InstrString returns the text of an instruction, including the register it defines and its type
func InstrString(instr Instruction) string {
	if v, ok := Defines(instr); ok {
		return fmt.Sprintf("%s = %s : %s", v.Ref(), instr, v.Type())
	}
	return instr.String()
}
