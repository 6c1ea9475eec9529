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

package ssair

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/runtime/memlog"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Lifted is a module lifted from an SSA program, with the SSA origin of its functions and instructions.
type Lifted struct {
	Module *ir.Module
	// Funcs maps each function of the module to the SSA function it has been lifted from
	Funcs map[*ir.Function]*ssa.Function
	// Instrs maps each lifted instruction to its SSA instruction
	Instrs map[ir.Instruction]ssa.Instruction
}

// SSAFunction returns the SSA function f has been lifted from, or nil.
func (l *Lifted) SSAFunction(f *ir.Function) *ssa.Function { return l.Funcs[f] }

// SSAInstruction returns the SSA instruction instr has been lifted from, or nil for the instructions inserted
// after lifting.
func (l *Lifted) SSAInstruction(instr ir.Instruction) ssa.Instruction { return l.Instrs[instr] }

// PackageFilter returns a filter accepting the functions with a body that belong to one of pkgs. Synthetic
// functions (wrappers, thunks) and the functions of the runtime logging package are rejected.
func PackageFilter(pkgs ...*ssa.Package) func(*ssa.Function) bool {
	set := map[*ssa.Package]bool{}
	for _, p := range pkgs {
		set[p] = true
	}
	return func(f *ssa.Function) bool {
		pkg := f.Package()
		if pkg == nil && f.Parent() != nil {
			pkg = f.Parent().Package()
		}
		return pkg != nil && set[pkg] && f.Synthetic == "" && !IsRuntimePackage(pkg)
	}
}

// IsRuntimePackage returns true if pkg is the package receiving the logging calls
func IsRuntimePackage(pkg *ssa.Package) bool {
	return pkg != nil && pkg.Pkg != nil && pkg.Pkg.Path() == memlog.ImportPath
}

// LiftProgram lifts the functions of prog accepted by filter into a module. Functions are sorted by name. Calls
// between lifted functions become Call instructions; every other call is an Other instruction.
func LiftProgram(prog *ssa.Program, filter func(*ssa.Function) bool) (*Lifted, error) {
	var funcs []*ssa.Function
	for f := range ssautil.AllFunctions(prog) {
		if filter == nil || filter(f) {
			funcs = append(funcs, f)
		}
	}
	slices.SortFunc(funcs, func(a, b *ssa.Function) bool { return a.String() < b.String() })

	l := newLifter(ir.NewModule("program"))
	for _, f := range funcs {
		irf := l.declare(f)
		if err := l.m.AddFunction(irf); err != nil {
			return nil, err
		}
	}
	for _, f := range funcs {
		if err := l.body(f); err != nil {
			return nil, err
		}
	}
	if err := ir.VerifyModule(l.m); err != nil {
		return nil, fmt.Errorf("lifted module is invalid: %w", err)
	}
	return l.lifted(), nil
}

// LiftFunction lifts a single function. All the calls of the function are Other instructions.
func LiftFunction(f *ssa.Function) (*ir.Function, error) {
	l := newLifter(nil)
	irf := l.declare(f)
	if err := l.body(f); err != nil {
		return nil, err
	}
	return irf, ir.Verify(irf)
}

type lifter struct {
	m       *ir.Module
	funcs   map[*ssa.Function]*ir.Function
	instrs  map[ir.Instruction]ssa.Instruction
	values  map[ssa.Value]ir.Value
	globals map[ssa.Value]*ir.Global
}

func newLifter(m *ir.Module) *lifter {
	return &lifter{
		m:       m,
		funcs:   map[*ssa.Function]*ir.Function{},
		instrs:  map[ir.Instruction]ssa.Instruction{},
		values:  map[ssa.Value]ir.Value{},
		globals: map[ssa.Value]*ir.Global{},
	}
}

func (l *lifter) lifted() *Lifted {
	res := &Lifted{Module: l.m, Funcs: map[*ir.Function]*ssa.Function{}, Instrs: l.instrs}
	for sf, f := range l.funcs {
		res.Funcs[f] = sf
	}
	return res
}

// declare creates the function and its parameters
func (l *lifter) declare(f *ssa.Function) *ir.Function {
	var result ir.Type = ir.Void
	if res := f.Signature.Results(); res.Len() == 1 {
		result = Type(res.At(0).Type())
	} else if res.Len() > 1 {
		result = Type(res)
	}
	irf := ir.NewFunction(f.String(), result)
	for _, p := range f.Params {
		l.values[p] = irf.AddParam(p.Name(), Type(p.Type()))
	}
	l.funcs[f] = irf
	return irf
}

// body lifts the blocks of f in dominator order, so that the operands of every instruction except the phis are
// lifted before it. Phi operands are resolved once all the blocks have been lifted.
func (l *lifter) body(f *ssa.Function) error {
	irf := l.funcs[f]
	if len(f.Blocks) == 0 {
		return nil
	}
	blocks := make([]*ir.BasicBlock, len(f.Blocks))
	for i := range f.Blocks {
		blocks[i] = irf.NewBlock()
	}
	type phi struct {
		ssa *ssa.Phi
		ir  *ir.Other
	}
	var phis []phi
	for _, sb := range f.DomPreorder() {
		b := ir.NewBuilder(blocks[sb.Index])
		for _, instr := range sb.Instrs {
			if p, ok := instr.(*ssa.Phi); ok {
				o := b.Other("phi", Type(p.Type()))
				o.SetPos(p.Pos())
				l.values[p] = o
				l.instrs[o] = p
				phis = append(phis, phi{p, o})
				continue
			}
			if err := l.instr(b, instr); err != nil {
				return fmt.Errorf("lifting %s: %s: %w", f, instr, err)
			}
		}
	}
	for _, p := range phis {
		args, err := l.operands(p.ssa.Edges)
		if err != nil {
			return fmt.Errorf("lifting %s: %s: %w", f, p.ssa, err)
		}
		p.ir.Args = args
	}
	return nil
}

// positioned is implemented by all the instructions created by the builder
type positioned interface {
	ir.Instruction
	SetPos(token.Pos)
}

// instr lifts one SSA instruction at the insertion point of b
func (l *lifter) instr(b *ir.Builder, instr ssa.Instruction) error {
	var created positioned
	switch instr := instr.(type) {
	case *ssa.DebugRef:
		return nil
	case *ssa.UnOp:
		if instr.Op != token.MUL {
			return l.other(b, instr, instr.Op.String())
		}
		x, err := l.operand(instr.X)
		if err != nil {
			return err
		}
		created = b.Load(x, Type(instr.Type()))
	case *ssa.Store:
		args, err := l.operands([]ssa.Value{instr.Val, instr.Addr})
		if err != nil {
			return err
		}
		created = b.Store(args[0], args[1])
	case *ssa.FieldAddr:
		x, err := l.operand(instr.X)
		if err != nil {
			return err
		}
		created = b.OffsetAddr(x, Type(instr.Type()), ir.NewConst(ir.Int32, int64(instr.Field)))
	case *ssa.IndexAddr:
		args, err := l.operands([]ssa.Value{instr.X, instr.Index})
		if err != nil {
			return err
		}
		created = b.OffsetAddr(args[0], Type(instr.Type()), args[1])
	case *ssa.Alloc:
		elem := instr.Type().Underlying().(*types.Pointer).Elem()
		created = b.Alloc(Type(elem))
	case *ssa.ChangeType:
		return l.cast(b, instr, instr.X)
	case *ssa.SliceToArrayPointer:
		return l.cast(b, instr, instr.X)
	case *ssa.Convert:
		if !isPointerLike(instr.X.Type()) || !isPointerLike(instr.Type()) {
			return l.other(b, instr, "convert")
		}
		return l.cast(b, instr, instr.X)
	case *ssa.Return:
		args, err := l.operands(instr.Results)
		if err != nil {
			return err
		}
		created = b.Return(args...)
	case *ssa.Call:
		static := instr.Call.StaticCallee()
		callee := l.funcs[static]
		if callee == nil || l.m == nil {
			o, err := l.opaque(b, instr, "invoke")
			if err == nil && static != nil {
				o.Callee = static.String()
			}
			return err
		}
		args, err := l.operands(instr.Call.Args)
		if err != nil {
			return err
		}
		call, err := b.Call(callee, args...)
		if err != nil {
			return err
		}
		created = call
	case *ssa.BinOp:
		return l.other(b, instr, instr.Op.String())
	default:
		return l.other(b, instr, opName(instr))
	}
	created.SetPos(instr.Pos())
	l.instrs[created] = instr
	if v, ok := instr.(ssa.Value); ok {
		if irv, ok := created.(ir.Value); ok {
			l.values[v] = irv
		}
	}
	return nil
}

func (l *lifter) cast(b *ir.Builder, instr ssa.Value, x ssa.Value) error {
	irx, err := l.operand(x)
	if err != nil {
		return err
	}
	v := b.Cast(irx, Type(instr.Type()))
	if c, ok := v.(*ir.Cast); ok {
		c.SetPos(instr.Pos())
		l.instrs[c] = instr.(ssa.Instruction)
	}
	l.values[instr] = v
	return nil
}

func (l *lifter) other(b *ir.Builder, instr ssa.Instruction, op string) error {
	_, err := l.opaque(b, instr, op)
	return err
}

// opaque lifts instr to an Other instruction with the operation op
func (l *lifter) opaque(b *ir.Builder, instr ssa.Instruction, op string) (*ir.Other, error) {
	var ops []ssa.Value
	for _, o := range instr.Operands(nil) {
		if o != nil && *o != nil {
			ops = append(ops, *o)
		}
	}
	args, err := l.operands(ops)
	if err != nil {
		return nil, err
	}
	var typ ir.Type = ir.Void
	v, isValue := instr.(ssa.Value)
	if isValue {
		typ = Type(v.Type())
	}
	o := b.Other(op, typ, args...)
	o.SetPos(instr.Pos())
	l.instrs[o] = instr
	if isValue {
		l.values[v] = o
	}
	return o, nil
}

func (l *lifter) operands(vs []ssa.Value) ([]ir.Value, error) {
	res := make([]ir.Value, len(vs))
	for i, v := range vs {
		irv, err := l.operand(v)
		if err != nil {
			return nil, err
		}
		res[i] = irv
	}
	return res, nil
}

// operand returns the lifted value of v. Constants with an integer type are constants of the IR. Other constants,
// globals, free variables and functions are opaque globals of the IR.
func (l *lifter) operand(v ssa.Value) (ir.Value, error) {
	if irv, ok := l.values[v]; ok {
		return irv, nil
	}
	switch v := v.(type) {
	case *ssa.Const:
		if c, ok := intConst(v); ok {
			return c, nil
		}
		return l.global(v, v.Name()), nil
	case *ssa.Global:
		return l.global(v, v.String()), nil
	case *ssa.FreeVar:
		return l.global(v, v.Parent().String()+"$"+v.Name()), nil
	case *ssa.Function:
		return l.global(v, v.String()), nil
	case *ssa.Builtin:
		return l.global(v, v.Name()), nil
	}
	return nil, fmt.Errorf("%s is used before it is defined", v.Name())
}

func (l *lifter) global(v ssa.Value, name string) *ir.Global {
	g, ok := l.globals[v]
	if !ok {
		g = ir.NewGlobal(name, Type(v.Type()))
		l.globals[v] = g
	}
	return g
}

func intConst(c *ssa.Const) (*ir.Const, bool) {
	if c.Value == nil || c.Value.Kind() != constant.Int {
		return nil, false
	}
	t, ok := Type(c.Type()).(*ir.IntType)
	if !ok {
		return nil, false
	}
	i, exact := constant.Int64Val(c.Value)
	if !exact {
		return nil, false
	}
	return ir.NewConst(t, i), true
}

// opName returns the name of the Other instructions lifted from instr: the lowercase name of its SSA type.
func opName(instr ssa.Instruction) string {
	name := fmt.Sprintf("%T", instr)
	return strings.ToLower(name[strings.LastIndexByte(name, '.')+1:])
}
