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
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The YAML representation of a module. Operands are written as "%name" for parameters and registers, "@name" for
// globals and "<type> <integer>" for constants.
type yamlModule struct {
	Name      string         `yaml:"name"`
	Globals   []yamlValue    `yaml:"globals,omitempty"`
	Functions []yamlFunction `yaml:"functions"`
}

type yamlValue struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type yamlFunction struct {
	Name   string      `yaml:"name"`
	Result string      `yaml:"result,omitempty"`
	Params []yamlValue `yaml:"params,omitempty"`
	Blocks []yamlBlock `yaml:"blocks,omitempty"`
}

type yamlBlock struct {
	Instrs []yamlInstr `yaml:"instrs"`
}

type yamlInstr struct {
	Op     string   `yaml:"op"`
	Name   string   `yaml:"name,omitempty"`
	Type   string   `yaml:"type,omitempty"`
	Callee string   `yaml:"callee,omitempty"`
	Elem   string   `yaml:"elem,omitempty"`
	Args   []string `yaml:"args,omitempty"`
}

// The op names of the instructions. Any other op is decoded as an Other instruction.
const (
	opLoad   = "load"
	opStore  = "store"
	opOffset = "offset"
	opCast   = "cast"
	opCall   = "call"
	opAlloc  = "alloc"
	opReturn = "ret"
)

// DecodeModule reads a module from its YAML representation. Operands may refer to values defined later in the
// function. The functions are verified after decoding.
func DecodeModule(b []byte) (*Module, error) {
	var ym yamlModule
	if err := yaml.Unmarshal(b, &ym); err != nil {
		return nil, fmt.Errorf("could not unmarshal module: %w", err)
	}
	m := NewModule(ym.Name)
	globals := map[string]*Global{}
	for _, g := range ym.Globals {
		t, err := ParseType(g.Type)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", g.Name, err)
		}
		globals[g.Name] = NewGlobal(g.Name, t)
	}

	// first pass: signatures, so that calls can refer to any function of the module
	for _, yf := range ym.Functions {
		result := Void
		if yf.Result != "" {
			t, err := ParseType(yf.Result)
			if err != nil {
				return nil, fmt.Errorf("function %s: result: %w", yf.Name, err)
			}
			result = t
		}
		f := NewFunction(yf.Name, result)
		for _, p := range yf.Params {
			t, err := ParseType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("function %s: parameter %s: %w", yf.Name, p.Name, err)
			}
			if f.Lookup(p.Name) != nil {
				return nil, fmt.Errorf("function %s: duplicate parameter %s", yf.Name, p.Name)
			}
			f.AddParam(p.Name, t)
		}
		if err := m.AddFunction(f); err != nil {
			return nil, err
		}
	}

	// second pass: bodies
	for i, yf := range ym.Functions {
		d := &decoder{m: m, f: m.Functions[i], globals: globals}
		if err := d.body(yf.Blocks); err != nil {
			return nil, fmt.Errorf("function %s: %w", yf.Name, err)
		}
	}
	if err := VerifyModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

type decoder struct {
	m       *Module
	f       *Function
	globals map[string]*Global
}

// body creates all the instructions before resolving their operands
func (d *decoder) body(blocks []yamlBlock) error {
	type pending struct {
		instr Instruction
		args  []string
	}
	var todo []pending
	// names are reserved before any instruction is inserted, so fresh names never collide with later ones
	created := make([][]Instruction, len(blocks))
	for bi, yb := range blocks {
		for _, yi := range yb.Instrs {
			instr, err := d.instr(yi)
			if err != nil {
				return err
			}
			if yi.Name != "" {
				if d.f.Lookup(yi.Name) != nil {
					return fmt.Errorf("duplicate value name %s", yi.Name)
				}
				d.f.reserve(yi.Name, instr)
			}
			created[bi] = append(created[bi], instr)
			todo = append(todo, pending{instr, yi.Args})
		}
	}
	for _, instrs := range created {
		d.f.NewBlock().Append(instrs...)
	}
	for _, p := range todo {
		args := make([]Value, len(p.args))
		for i, a := range p.args {
			v, err := d.operand(a)
			if err != nil {
				return fmt.Errorf("%s: %w", p.instr, err)
			}
			args[i] = v
		}
		if err := setOperands(p.instr, args); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) instr(yi yamlInstr) (Instruction, error) {
	typ := Void
	if yi.Type != "" {
		t, err := ParseType(yi.Type)
		if err != nil {
			return nil, fmt.Errorf("instruction %s: %w", yi.Op, err)
		}
		typ = t
	}
	var r *register
	var instr Instruction
	switch yi.Op {
	case opLoad:
		i := &Load{}
		r, instr = &i.register, i
	case opStore:
		return &Store{}, nil
	case opOffset:
		i := &OffsetAddr{}
		r, instr = &i.register, i
	case opCast:
		i := &Cast{}
		r, instr = &i.register, i
	case opCall:
		callee := d.m.Func(yi.Callee)
		if callee == nil {
			return nil, fmt.Errorf("call to unknown function %q", yi.Callee)
		}
		i := &Call{Callee: callee}
		r, instr = &i.register, i
		typ = callee.Result
	case opAlloc:
		elem, err := ParseType(yi.Elem)
		if err != nil {
			return nil, fmt.Errorf("alloc: %w", err)
		}
		i := &Alloc{Elem: elem}
		r, instr = &i.register, i
		typ = &PointerType{Elem: elem}
	case opReturn:
		return &Return{}, nil
	case "":
		return nil, fmt.Errorf("instruction without op")
	default:
		i := &Other{Op: yi.Op, Callee: yi.Callee}
		r, instr = &i.register, i
	}
	r.name = yi.Name
	r.typ = typ
	return instr, nil
}

func (d *decoder) operand(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "%"):
		if v := d.f.Lookup(s[1:]); v != nil {
			return v, nil
		}
		return nil, fmt.Errorf("undefined value %s", s)
	case strings.HasPrefix(s, "@"):
		if g, ok := d.globals[s[1:]]; ok {
			return g, nil
		}
		return nil, fmt.Errorf("undefined global %s", s)
	}
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return nil, fmt.Errorf("invalid operand %q", s)
	}
	t, err := ParseType(s[:i])
	if err != nil {
		return nil, fmt.Errorf("invalid operand %q: %w", s, err)
	}
	c, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid constant %q: %w", s, err)
	}
	return NewConst(t, c), nil
}

func setOperands(instr Instruction, args []Value) error {
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%T expects %d operands, got %d", instr, n, len(args))
		}
		return nil
	}
	switch instr := instr.(type) {
	case *Load:
		if err := arity(1); err != nil {
			return err
		}
		instr.Addr = args[0]
	case *Store:
		if err := arity(2); err != nil {
			return err
		}
		instr.Val, instr.Addr = args[0], args[1]
	case *OffsetAddr:
		if len(args) == 0 {
			return fmt.Errorf("offset without base")
		}
		instr.X, instr.Indices = args[0], args[1:]
	case *Cast:
		if err := arity(1); err != nil {
			return err
		}
		instr.X = args[0]
	case *Call:
		instr.Args = args
	case *Alloc:
		return arity(0)
	case *Return:
		instr.Results = args
	case *Other:
		instr.Args = args
	}
	return nil
}

// EncodeModule returns the YAML representation of m. The globals used by the functions are collected in the
// module's global list.
func EncodeModule(m *Module) ([]byte, error) {
	ym := yamlModule{Name: m.Name}
	globals := map[string]*Global{}
	for _, f := range m.Functions {
		yf := yamlFunction{Name: f.name, Result: f.Result.String()}
		for _, p := range f.Params {
			yf.Params = append(yf.Params, yamlValue{Name: p.name, Type: p.typ.String()})
		}
		for _, b := range f.Blocks {
			var yb yamlBlock
			for _, instr := range b.Instrs {
				yi := encodeInstr(instr)
				for _, op := range instr.Operands() {
					if g, ok := op.(*Global); ok {
						globals[g.name] = g
					}
				}
				yb.Instrs = append(yb.Instrs, yi)
			}
			yf.Blocks = append(yf.Blocks, yb)
		}
		ym.Functions = append(ym.Functions, yf)
	}
	for _, g := range globals {
		ym.Globals = append(ym.Globals, yamlValue{Name: g.name, Type: g.typ.String()})
	}
	sort.Slice(ym.Globals, func(i, j int) bool { return ym.Globals[i].Name < ym.Globals[j].Name })
	return yaml.Marshal(ym)
}

func encodeInstr(instr Instruction) yamlInstr {
	var yi yamlInstr
	for _, op := range instr.Operands() {
		yi.Args = append(yi.Args, ref(op))
	}
	if v, ok := Defines(instr); ok {
		yi.Name = v.Name()
		yi.Type = v.Type().String()
	}
	switch instr := instr.(type) {
	case *Load:
		yi.Op = opLoad
	case *Store:
		yi.Op = opStore
	case *OffsetAddr:
		yi.Op = opOffset
	case *Cast:
		yi.Op = opCast
	case *Call:
		yi.Op = opCall
		yi.Callee = instr.Callee.name
		yi.Type = ""
	case *Alloc:
		yi.Op = opAlloc
		yi.Elem = instr.Elem.String()
		yi.Type = ""
	case *Return:
		yi.Op = opReturn
	case *Other:
		yi.Op = instr.Op
		yi.Callee = instr.Callee
	}
	return yi
}
