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

package ir_test

import (
	"embed"
	"errors"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-memtrace/analysis/ir"
)

//go:embed testdata
var testFS embed.FS

func loadModule(t *testing.T, name string) *ir.Module {
	b, err := testFS.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("could not read %s: %s", name, err)
	}
	m, err := ir.DecodeModule(b)
	if err != nil {
		t.Fatalf("could not decode %s: %s", name, err)
	}
	return m
}

// counter counts the instructions by kind
type counter struct {
	loads, stores, offsets, casts, calls, allocs, returns, others int
}

func (c *counter) DoLoad(*ir.Load)             { c.loads++ }
func (c *counter) DoStore(*ir.Store)           { c.stores++ }
func (c *counter) DoOffsetAddr(*ir.OffsetAddr) { c.offsets++ }
func (c *counter) DoCast(*ir.Cast)             { c.casts++ }
func (c *counter) DoCall(*ir.Call)             { c.calls++ }
func (c *counter) DoAlloc(*ir.Alloc)           { c.allocs++ }
func (c *counter) DoReturn(*ir.Return)         { c.returns++ }
func (c *counter) DoOther(*ir.Other)           { c.others++ }

func count(f *ir.Function) *counter {
	c := &counter{}
	ir.IterateInstructions(f, func(_ int, instr ir.Instruction) { ir.InstrSwitch(c, instr) })
	return c
}

func TestDecodeKernel(t *testing.T) {
	m := loadModule(t, "kernel.yaml")
	if len(m.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(m.Functions))
	}
	hook := m.Func("logMemAccess")
	if hook == nil || !hook.IsDeclaration() {
		t.Fatalf("expected logMemAccess to be a declaration")
	}
	if !ir.TypesEqual(hook.Signature(), ir.HookSignature) {
		t.Errorf("unexpected hook signature %s", hook.Signature())
	}
	f := m.Func("FullyConnected")
	if f == nil || len(f.Params) != 9 {
		t.Fatalf("expected FullyConnected with 9 parameters")
	}
	c := count(f)
	if c.loads != 3 || c.stores != 2 || c.offsets != 1 || c.others != 1 || c.returns != 1 {
		t.Errorf("unexpected instruction counts %+v", *c)
	}
	load := f.Blocks[0].Instrs[0].(*ir.Load)
	if load.Addr != ir.Value(f.Params[2]) {
		t.Errorf("first load should read the input parameter, reads %s", load.Addr.Ref())
	}
	offset := f.Blocks[0].Instrs[1].(*ir.OffsetAddr)
	if offset.X != ir.Value(f.Params[2]) || len(offset.Indices) != 1 {
		t.Errorf("unexpected offset %s", offset)
	}
	if c, ok := offset.Indices[0].(*ir.Const); !ok || c.Int != 1 {
		t.Errorf("unexpected offset index %s", offset.Indices[0].Ref())
	}
	for _, instr := range f.Instructions() {
		if instr.Parent() != f {
			t.Errorf("%s is not attached to the function", instr)
		}
	}
}

func TestDecodeForwardReferences(t *testing.T) {
	m := loadModule(t, "forward.yaml")
	caller := m.Func("caller")
	call := caller.Blocks[0].Instrs[0].(*ir.Call)
	if call.Callee != m.Func("helper") {
		t.Errorf("call should target helper")
	}
	store := caller.Blocks[1].Instrs[0].(*ir.Store)
	if store.Addr != caller.Lookup("q") || store.Val != caller.Lookup("v") {
		t.Errorf("store operands not resolved: %s", store)
	}
	if _, ok := ir.Defines(call); ok {
		t.Errorf("call to a void function should not define a value")
	}
}

func TestDecodeRejectsCyclicOffsets(t *testing.T) {
	b, err := testFS.ReadFile("testdata/cyclic.yaml")
	if err != nil {
		t.Fatalf("could not read testdata: %s", err)
	}
	_, err = ir.DecodeModule(b)
	if !errors.Is(err, ir.ErrCyclicOffsetChain) {
		t.Fatalf("expected a cyclic offset chain error, got %v", err)
	}
	if !strings.Contains(err.Error(), "loop") {
		t.Errorf("error should name the function: %s", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	for name, src := range map[string]string{
		"undefined value": `
name: m
functions:
  - name: f
    blocks: [{instrs: [{op: load, name: x, type: i32, args: ["%nope"]}]}]`,
		"unknown callee": `
name: m
functions:
  - name: f
    blocks: [{instrs: [{op: call, callee: g}]}]`,
		"duplicate name": `
name: m
functions:
  - name: f
    params: [{name: p, type: ptr<i32>}]
    blocks: [{instrs: [{op: load, name: p, type: i32, args: ["%p"]}]}]`,
		"bad arity": `
name: m
functions:
  - name: f
    params: [{name: p, type: ptr<i32>}]
    blocks: [{instrs: [{op: store, args: ["%p"]}]}]`,
		"duplicate function": `
name: m
functions:
  - name: f
  - name: f`,
	} {
		if _, err := ir.DecodeModule([]byte(src)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	m := loadModule(t, "kernel.yaml")
	b, err := ir.EncodeModule(m)
	if err != nil {
		t.Fatalf("could not encode: %s", err)
	}
	m2, err := ir.DecodeModule(b)
	if err != nil {
		t.Fatalf("could not decode encoded module: %s\n%s", err, b)
	}
	if m.Func("FullyConnected").String() != m2.Func("FullyConnected").String() {
		t.Errorf("functions differ after encoding:\n%s\n%s", m.Func("FullyConnected"), m2.Func("FullyConnected"))
	}
}

func TestBuilderInsertBefore(t *testing.T) {
	m := ir.NewModule("m")
	hook, err := m.Declare("logMemAccess", ir.HookSignature)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	f := ir.NewFunction("f", ir.Void)
	p := f.AddParam("p", &ir.PointerType{Elem: ir.Int32})
	if err := m.AddFunction(f); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	b := ir.NewBuilder(f.NewBlock())
	load := b.Load(p, ir.Int32)
	ret := b.Return()

	before, err := ir.NewBuilderBefore(load)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	addr := before.Cast(p, ir.BytePtr)
	call, err := before.Call(hook, addr, ir.NewConst(ir.Int32, 0))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	instrs := f.Blocks[0].Instrs
	if len(instrs) != 4 || instrs[0] != addr.(ir.Instruction) || instrs[1] != ir.Instruction(call) ||
		instrs[2] != ir.Instruction(load) || instrs[3] != ir.Instruction(ret) {
		t.Fatalf("unexpected instruction order:\n%s", f)
	}
	if addr.Name() == load.Name() || addr.Name() == "" {
		t.Errorf("registers should have distinct names, got %q and %q", addr.Name(), load.Name())
	}
	if same := before.Cast(addr, ir.BytePtr); same != addr {
		t.Errorf("cast to the same type should return its operand")
	}
	if _, err := before.Call(hook, addr); err == nil {
		t.Errorf("expected an error calling the hook with one argument")
	}
	if err := ir.Verify(f); err != nil {
		t.Errorf("unexpected verification error: %s", err)
	}
	text := f.String()
	if !strings.Contains(text, "call @logMemAccess(%") || !strings.Contains(text, "i32 0)") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

func TestNewBuilderBeforeDetached(t *testing.T) {
	f := ir.NewFunction("f", ir.Void)
	b := ir.NewBuilder(f.NewBlock())
	ret := b.Return()
	if _, err := ir.NewBuilderBefore(ret); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
	if _, err := ir.NewBuilderBefore(&ir.Return{}); err == nil {
		t.Errorf("expected an error for a detached instruction")
	}
}

func TestOffsetChainDepths(t *testing.T) {
	f := ir.NewFunction("f", ir.Void)
	p := f.AddParam("p", &ir.PointerType{Elem: ir.Int32})
	b := ir.NewBuilder(f.NewBlock())
	var chain []*ir.OffsetAddr
	var x ir.Value = p
	for i := 0; i < 4; i++ {
		o := b.OffsetAddr(x, p.Type(), ir.NewConst(ir.Int64, int64(i)))
		chain = append(chain, o)
		x = o
	}
	depths, err := ir.OffsetChainDepths(f)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for i, o := range chain {
		if depths[o] != i+1 {
			t.Errorf("depth of %s: expected %d, got %d", o.Name(), i+1, depths[o])
		}
	}
}

func TestVerifyForeignOperand(t *testing.T) {
	g := ir.NewFunction("g", ir.Void)
	q := g.AddParam("q", &ir.PointerType{Elem: ir.Int32})
	f := ir.NewFunction("f", ir.Void)
	ir.NewBuilder(f.NewBlock()).Load(q, ir.Int32)
	if err := ir.Verify(f); err == nil {
		t.Errorf("expected an error for an operand of another function")
	}
}

func TestVerifyForeignInstruction(t *testing.T) {
	g := ir.NewFunction("g", ir.Void)
	slot := ir.NewBuilder(g.NewBlock()).Alloc(ir.Int32)
	f := ir.NewFunction("f", ir.Void)
	ir.NewBuilder(f.NewBlock()).Load(slot, ir.Int32)
	err := ir.Verify(f)
	if err == nil || !strings.Contains(err.Error(), "not defined in the function") {
		t.Errorf("expected an error for an instruction of another function, got %v", err)
	}
}

func TestExternalCallee(t *testing.T) {
	m := ir.NewModule("m")
	f, err := m.Declare("f", &ir.FuncType{Result: ir.Void})
	if err != nil {
		t.Fatal(err)
	}
	b := ir.NewBuilder(f.NewBlock())
	call := b.Other("invoke", ir.Void)
	call.Callee = "fmt.Println"
	b.Return()
	if s := call.String(); s != "invoke @fmt.Println()" {
		t.Errorf("unexpected text %q", s)
	}
	out, err := ir.EncodeModule(m)
	if err != nil {
		t.Fatalf("could not encode: %s", err)
	}
	m2, err := ir.DecodeModule(out)
	if err != nil {
		t.Fatalf("could not decode encoded module: %s\n%s", err, out)
	}
	if o, ok := m2.Func("f").Instructions()[0].(*ir.Other); !ok || o.Callee != "fmt.Println" {
		t.Errorf("callee lost after encoding:\n%s", out)
	}
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"i8", "i32", "ptr<i8>", "ptr<ptr<i64>>", "void", "float32", "[]float32"} {
		typ, err := ir.ParseType(s)
		if err != nil {
			t.Errorf("%s: unexpected error %s", s, err)
			continue
		}
		if typ.String() != s {
			t.Errorf("expected %s, got %s", s, typ)
		}
	}
	if _, err := ir.ParseType(" "); err == nil {
		t.Errorf("expected an error for an empty type")
	}
}
