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
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-memtrace/analysis/ir"
)

// ErrHookSignatureMismatch is returned when the module already has a function with the name of the logging hook,
// but with another signature than func(ptr<i8>, i32) void.
var ErrHookSignatureMismatch = errors.New("logging hook signature mismatch")

// GetOrInsertHook returns the function name of m, declaring it with the signature of the logging hook if m does
// not have it.
func GetOrInsertHook(m *ir.Module, name string) (*ir.Function, error) {
	if f := m.Func(name); f != nil {
		if !ir.TypesEqual(f.Signature(), ir.HookSignature) {
			return nil, fmt.Errorf("%w: %s has type %s, expected %s", ErrHookSignatureMismatch, name,
				f.Signature(), ir.HookSignature)
		}
		return f, nil
	}
	return m.Declare(name, ir.HookSignature)
}

// CallsHook returns true if f calls the logging hook name, either declared in its module or as a function outside
// of it, such as memlog.LogMemAccess in lifted Go sources. Names are compared with IsHookName.
func CallsHook(f *ir.Function, name string) bool {
	for _, instr := range f.Instructions() {
		switch instr := instr.(type) {
		case *ir.Call:
			if instr.Callee != nil && IsHookName(instr.Callee.Name(), name) {
				return true
			}
		case *ir.Other:
			if instr.Callee != "" && IsHookName(instr.Callee, name) {
				return true
			}
		}
	}
	return false
}
