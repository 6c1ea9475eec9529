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
	"strconv"
	"strings"
)

// A Type is the type of a value. Types are compared structurally with TypesEqual.
type Type interface {
	String() string
}

// IntType is an integer type of a given width
type IntType struct {
	Bits int
}

func (t *IntType) String() string { return "i" + strconv.Itoa(t.Bits) }

// PointerType is the type of addresses of values of type Elem
type PointerType struct {
	Elem Type
}

func (t *PointerType) String() string { return "ptr<" + t.Elem.String() + ">" }

// VoidType is the result type of functions that return nothing
type VoidType struct{}

func (VoidType) String() string { return "void" }

// NamedType is an opaque type known by its name only (e.g. the float32 of a Go program)
type NamedType struct {
	Name string
}

func (t *NamedType) String() string { return t.Name }

// FuncType is the signature of a function
type FuncType struct {
	Params []Type
	Result Type
}

func (t *FuncType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("func(%s) %s", strings.Join(params, ", "), t.Result)
}

var (
	Int8  Type = &IntType{Bits: 8}
	Int32 Type = &IntType{Bits: 32}
	Int64 Type = &IntType{Bits: 64}
	Void  Type = VoidType{}

	// BytePtr is the opaque byte pointer type of the logging hook's address argument
	BytePtr Type = &PointerType{Elem: Int8}
)

// HookSignature is the only signature accepted for the logging entry point: func(ptr<i8>, i32) void
var HookSignature = &FuncType{Params: []Type{BytePtr, Int32}, Result: Void}

// TypesEqual returns true if the two types are structurally equal.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsPointer returns true if t is a pointer type
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}

// ParseType parses the representation returned by Type.String, except for function types.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty type")
	case s == "void":
		return Void, nil
	case strings.HasPrefix(s, "ptr<") && strings.HasSuffix(s, ">"):
		elem, err := ParseType(s[len("ptr<") : len(s)-1])
		if err != nil {
			return nil, fmt.Errorf("in %q: %w", s, err)
		}
		return &PointerType{Elem: elem}, nil
	case len(s) > 1 && s[0] == 'i':
		if bits, err := strconv.Atoi(s[1:]); err == nil && bits > 0 {
			return &IntType{Bits: bits}, nil
		}
	}
	return &NamedType{Name: s}, nil
}
