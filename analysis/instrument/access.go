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
	"fmt"
	"go/token"

	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
)

// TraceOrigin returns the value v is derived from through offset computations, and the number of offset
// computations between them. Only OffsetAddr instructions are followed: casts and loads stop the walk.
// The walk terminates if the function has no cyclic offset chain (see ir.Verify).
func TraceOrigin(v ir.Value) (ir.Value, int) {
	steps := 0
	for {
		o, ok := v.(*ir.OffsetAddr)
		if !ok {
			return v, steps
		}
		v = o.X
		steps++
	}
}

// An Access is a load or a store that is instrumented
type Access struct {
	// Instr is the Load or the Store
	Instr ir.Instruction
	// Addr is the address read or written
	Addr ir.Value
	// Origin is the value Addr is derived from, and Steps the number of offset computations from Origin to Addr
	Origin ir.Value
	Steps  int
	// Tag is the value passed to the logging hook, and Label its name in the tag scheme
	Tag   tracefile.Tag
	Label string
}

// Function returns the function containing the access
func (a Access) Function() *ir.Function { return a.Instr.Parent() }

// Pos returns the source position of the access, if the function has been lifted from source
func (a Access) Pos() token.Pos { return a.Instr.Pos() }

func (a Access) String() string {
	return fmt.Sprintf("%s %s (origin %s, %d steps)", a.Label, ir.InstrString(a.Instr), a.Origin.Ref(), a.Steps)
}

// Classify returns the access of instr if it is a load from the input buffer or a store to the output buffer of
// the target. Labels are those of the buffer scheme.
func Classify(instr ir.Instruction, target Target) (Access, bool) {
	c := &collector{scheme: tracefile.BufferScheme, target: &target}
	ir.InstrSwitch(c, instr)
	if len(c.accesses) == 0 {
		return Access{}, false
	}
	return c.accesses[0], true
}

// collector collects the accesses of the instructions it visits. With a target, it collects the loads from the
// input and the stores to the output. Without a target, it collects every load and store.
type collector struct {
	scheme   tracefile.Scheme
	target   *Target
	accesses []Access
}

func (c *collector) add(instr ir.Instruction, addr ir.Value, tag tracefile.Tag) {
	origin, steps := TraceOrigin(addr)
	c.accesses = append(c.accesses, Access{
		Instr:  instr,
		Addr:   addr,
		Origin: origin,
		Steps:  steps,
		Tag:    tag,
		Label:  c.scheme.Label(tag),
	})
}

func (c *collector) DoLoad(instr *ir.Load) {
	if c.target == nil {
		c.add(instr, instr.Addr, tracefile.TagLoad)
		return
	}
	if origin, _ := TraceOrigin(instr.Addr); origin == ir.Value(c.target.Input) {
		c.add(instr, instr.Addr, tracefile.TagInput)
	}
}

func (c *collector) DoStore(instr *ir.Store) {
	if c.target == nil {
		c.add(instr, instr.Addr, tracefile.TagStore)
		return
	}
	if origin, _ := TraceOrigin(instr.Addr); origin == ir.Value(c.target.Output) {
		c.add(instr, instr.Addr, tracefile.TagOutput)
	}
}

func (c *collector) DoOffsetAddr(*ir.OffsetAddr) {}
func (c *collector) DoCast(*ir.Cast)             {}
func (c *collector) DoCall(*ir.Call)             {}
func (c *collector) DoAlloc(*ir.Alloc)           {}
func (c *collector) DoReturn(*ir.Return)         {}
func (c *collector) DoOther(*ir.Other)           {}

// collect returns the accesses of f, in instruction order
func (c *collector) collect(f *ir.Function) []Access {
	ir.IterateInstructions(f, func(_ int, instr ir.Instruction) { ir.InstrSwitch(c, instr) })
	return c.accesses
}
