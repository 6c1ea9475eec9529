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
)

// A Module is a compiled unit: a set of functions with unique names. Functions without blocks are declarations
// of functions defined elsewhere.
type Module struct {
	Name      string
	Functions []*Function

	byName map[string]*Function
}

// NewModule returns an empty module
func NewModule(name string) *Module {
	return &Module{Name: name, byName: map[string]*Function{}}
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Function {
	return m.byName[name]
}

// AddFunction adds f to the module. It returns an error if the module already has a function with the same name.
func (m *Module) AddFunction(f *Function) error {
	if _, ok := m.byName[f.name]; ok {
		return fmt.Errorf("module %s already has a function %s", m.Name, f.name)
	}
	f.module = m
	m.Functions = append(m.Functions, f)
	m.byName[f.name] = f
	return nil
}

// Declare adds the declaration of an external function with signature sig.
func (m *Module) Declare(name string, sig *FuncType) (*Function, error) {
	f := NewFunction(name, sig.Result)
	for i, t := range sig.Params {
		f.AddParam("a"+strconv.Itoa(i), t)
	}
	if err := m.AddFunction(f); err != nil {
		return nil, err
	}
	return f, nil
}

// A Function is a named list of parameters and basic blocks. The name of a function never changes; its blocks
// can be modified.
type Function struct {
	Params []*Parameter
	Result Type
	Blocks []*BasicBlock

	name    string
	module  *Module
	counter int
	names   map[string]any
}

// NewFunction returns a function without parameters or blocks
func NewFunction(name string, result Type) *Function {
	if result == nil {
		result = Void
	}
	return &Function{name: name, Result: result, names: map[string]any{}}
}

func (f *Function) Name() string { return f.name }

// Module returns the module containing f, or nil.
func (f *Function) Module() *Module { return f.module }

// AddParam appends a parameter to the function
func (f *Function) AddParam(name string, typ Type) *Parameter {
	p := &Parameter{Index: len(f.Params), typ: typ, parent: f}
	p.name = f.reserve(name, p)
	f.Params = append(f.Params, p)
	return p
}

// NewBlock appends an empty basic block to the function
func (f *Function) NewBlock() *BasicBlock {
	b := &BasicBlock{Index: len(f.Blocks), parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// IsDeclaration returns true if f has no body
func (f *Function) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// Signature returns the type of f
func (f *Function) Signature() *FuncType {
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.typ
	}
	return &FuncType{Params: params, Result: f.Result}
}

// Instructions returns all the instructions of f, in block order
func (f *Function) Instructions() []Instruction {
	var res []Instruction
	for _, b := range f.Blocks {
		res = append(res, b.Instrs...)
	}
	return res
}

// NumInstrs returns the number of instructions of f
func (f *Function) NumInstrs() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Calls returns true if some instruction of f calls callee
func (f *Function) Calls(callee *Function) bool {
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			if c, ok := instr.(*Call); ok && c.Callee == callee {
				return true
			}
		}
	}
	return false
}

// reserve returns a name for owner derived from hint that no other value of f uses. Empty hints get a fresh
// temporary name.
func (f *Function) reserve(hint string, owner any) string {
	name := hint
	for name == "" || (f.names[name] != nil && f.names[name] != owner) {
		name = "t" + strconv.Itoa(f.counter)
		f.counter++
	}
	f.names[name] = owner
	return name
}

// Lookup returns the parameter or the instruction of f that defines the value with the given name, or nil.
func (f *Function) Lookup(name string) Value {
	v, _ := f.names[name].(Value)
	return v
}

// A BasicBlock is a sequence of instructions.
type BasicBlock struct {
	Index  int
	Instrs []Instruction

	parent *Function
}

// Parent returns the function containing the block
func (b *BasicBlock) Parent() *Function { return b.parent }

func (b *BasicBlock) String() string { return "b" + strconv.Itoa(b.Index) }

// IndexOf returns the position of instr in the block, or -1.
func (b *BasicBlock) IndexOf(instr Instruction) int {
	for i, x := range b.Instrs {
		if x == instr {
			return i
		}
	}
	return -1
}

// Append adds the instructions at the end of the block
func (b *BasicBlock) Append(instrs ...Instruction) {
	for _, instr := range instrs {
		b.adopt(instr)
	}
	b.Instrs = append(b.Instrs, instrs...)
}

// InsertBefore inserts the instructions, in order, just before the instruction at. It returns an error if at is not
// in the block.
func (b *BasicBlock) InsertBefore(at Instruction, instrs ...Instruction) error {
	i := b.IndexOf(at)
	if i < 0 {
		return fmt.Errorf("%s is not in block %s", at, b)
	}
	for _, instr := range instrs {
		b.adopt(instr)
	}
	res := make([]Instruction, 0, len(b.Instrs)+len(instrs))
	res = append(res, b.Instrs[:i]...)
	res = append(res, instrs...)
	res = append(res, b.Instrs[i:]...)
	b.Instrs = res
	return nil
}

// adopt sets the block of instr and gives it a name unique in the function if it defines a value
func (b *BasicBlock) adopt(instr Instruction) {
	instr.setBlock(b)
	if r, ok := instr.(interface {
		Value
		SetName(string)
	}); ok && b.parent != nil {
		if _, isCall := instr.(*Call); isCall && TypesEqual(r.Type(), Void) {
			return
		}
		if _, isOther := instr.(*Other); isOther && TypesEqual(r.Type(), Void) {
			return
		}
		r.SetName(b.parent.reserve(r.Name(), instr))
	}
}
