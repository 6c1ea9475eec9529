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

import "fmt"

// A Builder creates instructions and inserts them at a fixed insertion point: either before an instruction of a
// block, or at the end of a block. Instructions are inserted in the order they are created.
type Builder struct {
	block  *BasicBlock
	before Instruction
}

// NewBuilder returns a builder appending instructions at the end of block b
func NewBuilder(b *BasicBlock) *Builder {
	return &Builder{block: b}
}

// NewBuilderBefore returns a builder inserting instructions just before instr, which must be in a block.
func NewBuilderBefore(instr Instruction) (*Builder, error) {
	if instr.Block() == nil {
		return nil, fmt.Errorf("cannot insert before %s: instruction is not in a block", instr)
	}
	return &Builder{block: instr.Block(), before: instr}, nil
}

// Block returns the block the builder inserts into
func (b *Builder) Block() *BasicBlock { return b.block }

func (b *Builder) insert(instr Instruction) {
	if b.before == nil {
		b.block.Append(instr)
		return
	}
	// the insertion point was checked when the builder was created, and instructions are never removed
	if err := b.block.InsertBefore(b.before, instr); err != nil {
		panic(err)
	}
}

// Load creates a load of a value of type typ at addr
func (b *Builder) Load(addr Value, typ Type) *Load {
	i := &Load{Addr: addr}
	i.typ = typ
	b.insert(i)
	return i
}

// Store creates a store of val at addr
func (b *Builder) Store(val, addr Value) *Store {
	i := &Store{Val: val, Addr: addr}
	b.insert(i)
	return i
}

// OffsetAddr creates an address computation from base x. The result has type typ.
func (b *Builder) OffsetAddr(x Value, typ Type, indices ...Value) *OffsetAddr {
	i := &OffsetAddr{X: x, Indices: indices}
	i.typ = typ
	b.insert(i)
	return i
}

// Cast returns x reinterpreted as a value of type to. If x already has type to, x is returned and no instruction
// is created.
func (b *Builder) Cast(x Value, to Type) Value {
	if TypesEqual(x.Type(), to) {
		return x
	}
	i := &Cast{X: x}
	i.typ = to
	b.insert(i)
	return i
}

// Call creates a call to callee. The number of arguments must match the callee's parameters.
func (b *Builder) Call(callee *Function, args ...Value) (*Call, error) {
	if len(args) != len(callee.Params) {
		return nil, fmt.Errorf("call to %s: got %d arguments, want %d", callee.Name(), len(args), len(callee.Params))
	}
	i := &Call{Callee: callee, Args: args}
	i.typ = callee.Result
	b.insert(i)
	return i, nil
}

// Alloc creates an allocation of a value of type elem
func (b *Builder) Alloc(elem Type) *Alloc {
	i := &Alloc{Elem: elem}
	i.typ = &PointerType{Elem: elem}
	b.insert(i)
	return i
}

// Return creates a return instruction
func (b *Builder) Return(results ...Value) *Return {
	i := &Return{Results: results}
	b.insert(i)
	return i
}

// Other creates an opaque instruction. If typ is Void, the instruction does not define a value.
func (b *Builder) Other(op string, typ Type, args ...Value) *Other {
	i := &Other{Op: op, Args: args}
	i.typ = typ
	b.insert(i)
	return i
}
