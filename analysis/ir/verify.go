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
	"errors"
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-memtrace/internal/graphutil"
)

// ErrCyclicOffsetChain is returned when an offset computation is derived, directly or not, from itself. Origin
// resolution would not terminate on such a function.
var ErrCyclicOffsetChain = errors.New("cyclic offset computation chain")

// OffsetGraph returns the graph of the offset computations of f: there is an edge from the base of each OffsetAddr
// to the OffsetAddr.
func OffsetGraph(f *Function) *graphutil.Digraph[Value] {
	g := graphutil.NewDigraph[Value]()
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			if o, ok := instr.(*OffsetAddr); ok && o.X != nil {
				g.AddEdge(o.X, o)
			}
		}
	}
	return g
}

// OffsetChainDepths returns, for each OffsetAddr of f, the number of offset computations between it and its origin,
// itself included. It returns an error wrapping ErrCyclicOffsetChain if an offset chain is cyclic.
func OffsetChainDepths(f *Function) (map[*OffsetAddr]int, error) {
	g := OffsetGraph(f)
	if err := checkAcyclic(f, g); err != nil {
		return nil, err
	}
	depths, err := g.Depths()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, ErrCyclicOffsetChain)
	}
	res := map[*OffsetAddr]int{}
	for v, d := range depths {
		if o, ok := v.(*OffsetAddr); ok {
			res[o] = d
		}
	}
	return res, nil
}

func checkAcyclic(f *Function, g *graphutil.Digraph[Value]) error {
	if g.IsAcyclic() {
		return nil
	}
	var cycles []string
	for _, cycle := range g.Cycles() {
		refs := make([]string, len(cycle))
		for i, v := range cycle {
			refs[i] = ref(v)
		}
		cycles = append(cycles, "{"+strings.Join(refs, ", ")+"}")
	}
	return fmt.Errorf("%s: %w through %s", f.name, ErrCyclicOffsetChain, strings.Join(cycles, ", "))
}

// Verify checks that the function is well-formed: instructions know their block, operands are non-nil and are
// values of the same function, calls match the signature of their callee and offset chains are acyclic.
func Verify(f *Function) error {
	for _, p := range f.Params {
		if p.parent != f {
			return fmt.Errorf("%s: parameter %s belongs to another function", f.name, p.Ref())
		}
	}
	for _, b := range f.Blocks {
		if b.parent != f {
			return fmt.Errorf("%s: block %s belongs to another function", f.name, b)
		}
		for _, instr := range b.Instrs {
			if instr.Block() != b {
				return fmt.Errorf("%s: instruction %q is not attached to block %s", f.name, instr, b)
			}
			if err := verifyOperands(f, instr); err != nil {
				return fmt.Errorf("%s: %q: %w", f.name, instr, err)
			}
		}
	}
	return checkAcyclic(f, OffsetGraph(f))
}

func verifyOperands(f *Function, instr Instruction) error {
	for i, op := range instr.Operands() {
		switch op := op.(type) {
		case nil:
			return fmt.Errorf("operand %d is nil", i)
		case *Parameter:
			if op.parent != f {
				return fmt.Errorf("operand %s is a parameter of another function", op.Ref())
			}
		case interface {
			Instruction
			Value
		}:
			if op.Parent() != f {
				return fmt.Errorf("operand %s is not defined in the function", op.Ref())
			}
		}
	}
	switch instr := instr.(type) {
	case *Call:
		if instr.Callee == nil {
			return fmt.Errorf("call without callee")
		}
		if len(instr.Args) != len(instr.Callee.Params) {
			return fmt.Errorf("%d arguments for %d parameters", len(instr.Args), len(instr.Callee.Params))
		}
	case *Load:
		if !IsPointer(instr.Addr.Type()) {
			return fmt.Errorf("load from a non-pointer address of type %s", instr.Addr.Type())
		}
	case *Store:
		if !IsPointer(instr.Addr.Type()) {
			return fmt.Errorf("store to a non-pointer address of type %s", instr.Addr.Type())
		}
	}
	return nil
}

// VerifyModule verifies all the functions of m
func VerifyModule(m *Module) error {
	var errs []error
	for _, f := range m.Functions {
		if f.module != m {
			errs = append(errs, fmt.Errorf("function %s is not attached to module %s", f.name, m.Name))
			continue
		}
		if err := Verify(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
