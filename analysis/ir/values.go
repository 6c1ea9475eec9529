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
	"go/token"
	"strconv"
	"strings"
)

// A Value is anything an instruction can use as an operand: parameters, constants, opaque globals and the
// instructions that produce a result.
type Value interface {
	// Name returns the name of the value, without sigil. Values of instructions without result have an empty name.
	Name() string
	// Type returns the type of the value.
	Type() Type
	// Ref returns the representation of the value when it is used as an operand.
	Ref() string
}

// An Instruction is a member of a basic block. The set of instructions is closed: Load, Store, OffsetAddr, Cast,
// Call, Alloc, Return and Other. Use InstrSwitch with an InstrOp to dispatch on them.
type Instruction interface {
	// Block returns the basic block containing the instruction, or nil if it has not been inserted.
	Block() *BasicBlock
	// Parent returns the function containing the instruction.
	Parent() *Function
	// Operands returns the values used by the instruction, in order.
	Operands() []Value
	// Pos returns the source position the instruction has been lifted from, if any.
	Pos() token.Pos
	// String returns the text of the instruction, without the register it defines.
	String() string

	setBlock(*BasicBlock)
}

// A Parameter is a positional argument of a function. Parameters are root values: they are never derived from
// another value.
type Parameter struct {
	Index  int
	name   string
	typ    Type
	parent *Function
}

func (p *Parameter) Name() string      { return p.name }
func (p *Parameter) Type() Type        { return p.typ }
func (p *Parameter) Ref() string       { return "%" + p.name }
func (p *Parameter) Parent() *Function { return p.parent }
func (p *Parameter) String() string    { return fmt.Sprintf("%%%s %s", p.name, p.typ) }

// A Const is an integer constant.
type Const struct {
	Int int64
	typ Type
}

// NewConst returns the constant v of type typ
func NewConst(typ Type, v int64) *Const {
	return &Const{Int: v, typ: typ}
}

func (c *Const) Name() string { return strconv.FormatInt(c.Int, 10) }
func (c *Const) Type() Type   { return c.typ }
func (c *Const) Ref() string  { return c.typ.String() + " " + c.Name() }

// A Global is an opaque root value defined outside the function: a global variable, a captured variable or any
// value the front end does not model.
type Global struct {
	name string
	typ  Type
}

// NewGlobal returns a new opaque value
func NewGlobal(name string, typ Type) *Global {
	return &Global{name: name, typ: typ}
}

func (g *Global) Name() string { return g.name }
func (g *Global) Type() Type   { return g.typ }
func (g *Global) Ref() string  { return "@" + g.name }

// anInstruction is the part common to all instructions
type anInstruction struct {
	block *BasicBlock
	pos   token.Pos
}

func (i *anInstruction) Block() *BasicBlock { return i.block }

func (i *anInstruction) Parent() *Function {
	if i.block == nil {
		return nil
	}
	return i.block.parent
}

func (i *anInstruction) Pos() token.Pos         { return i.pos }
func (i *anInstruction) SetPos(pos token.Pos)   { i.pos = pos }
func (i *anInstruction) setBlock(b *BasicBlock) { i.block = b }

// register is the part common to the instructions that define a value
type register struct {
	anInstruction
	name string
	typ  Type
}

func (r *register) Name() string { return r.name }
func (r *register) Type() Type   { return r.typ }
func (r *register) Ref() string  { return "%" + r.name }

// SetName sets the name of the register defined by the instruction
func (r *register) SetName(name string) { r.name = name }

// Load reads memory at Addr.
type Load struct {
	register
	Addr Value
}

// Store writes Val to memory at Addr. It does not define a value.
type Store struct {
	anInstruction
	Val  Value
	Addr Value
}

// OffsetAddr computes an address from the base address X and offsets (field numbers or element indices). The
// result designates memory of the same allocation as X.
type OffsetAddr struct {
	register
	X       Value
	Indices []Value
}

// Cast reinterprets X as a value of another type. The bits of the value are unchanged.
type Cast struct {
	register
	X Value
}

// Call calls a function of the module. Calls to functions returning void define a value without name.
type Call struct {
	register
	Callee *Function
	Args   []Value
}

// Alloc allocates memory for a value of type Elem and returns its address. An Alloc is a root value.
type Alloc struct {
	register
	Elem Type
}

// Return terminates the function.
type Return struct {
	anInstruction
	Results []Value
}

// Other is any instruction that is not relevant to the memory accesses: arithmetic, control flow, phis, calls to
// functions outside the module, ...
type Other struct {
	register
	Op   string
	Args []Value
	// Callee is the name of the function called statically by the instruction, if any
	Callee string
}

func (i *Load) Operands() []Value       { return []Value{i.Addr} }
func (i *Store) Operands() []Value      { return []Value{i.Val, i.Addr} }
func (i *OffsetAddr) Operands() []Value { return append([]Value{i.X}, i.Indices...) }
func (i *Cast) Operands() []Value       { return []Value{i.X} }
func (i *Call) Operands() []Value       { return append([]Value(nil), i.Args...) }
func (i *Alloc) Operands() []Value      { return nil }
func (i *Return) Operands() []Value     { return append([]Value(nil), i.Results...) }
func (i *Other) Operands() []Value      { return append([]Value(nil), i.Args...) }

func (i *Load) String() string  { return "load " + ref(i.Addr) }
func (i *Store) String() string { return "store " + ref(i.Val) + ", " + ref(i.Addr) }

func (i *OffsetAddr) String() string {
	return "offset " + refs(i.Operands())
}

func (i *Cast) String() string { return "cast " + ref(i.X) + " to " + i.typ.String() }

func (i *Call) String() string {
	callee := "<nil>"
	if i.Callee != nil {
		callee = i.Callee.name
	}
	return fmt.Sprintf("call @%s(%s)", callee, refs(i.Args))
}

func (i *Alloc) String() string { return "alloc " + i.Elem.String() }

func (i *Return) String() string {
	if len(i.Results) == 0 {
		return "ret"
	}
	return "ret " + refs(i.Results)
}

func (i *Other) String() string {
	if i.Callee != "" {
		return fmt.Sprintf("%s @%s(%s)", i.Op, i.Callee, refs(i.Args))
	}
	if len(i.Args) == 0 {
		return i.Op
	}
	return i.Op + " " + refs(i.Args)
}

func ref(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Ref()
}

func refs(vs []Value) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = ref(v)
	}
	return strings.Join(s, ", ")
}

// Defines returns the value defined by the instruction, if any.
func Defines(instr Instruction) (Value, bool) {
	switch instr := instr.(type) {
	case *Store, *Return:
		return nil, false
	case Value:
		if instr.Name() == "" {
			return nil, false
		}
		return instr, true
	}
	return nil, false
}
