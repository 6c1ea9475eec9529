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

// An InstrOp must implement methods for ALL the instructions of the IR
type InstrOp interface {
	DoLoad(*Load)
	DoStore(*Store)
	DoOffsetAddr(*OffsetAddr)
	DoCast(*Cast)
	DoCall(*Call)
	DoAlloc(*Alloc)
	DoReturn(*Return)
	DoOther(*Other)
}

// InstrSwitch maps the different instructions to the methods of the visitor. It panics on an instruction that is
// not part of the IR.
func InstrSwitch(visitor InstrOp, instr Instruction) {
	switch instr := instr.(type) {
	case *Load:
		visitor.DoLoad(instr)
	case *Store:
		visitor.DoStore(instr)
	case *OffsetAddr:
		visitor.DoOffsetAddr(instr)
	case *Cast:
		visitor.DoCast(instr)
	case *Call:
		visitor.DoCall(instr)
	case *Alloc:
		visitor.DoAlloc(instr)
	case *Return:
		visitor.DoReturn(instr)
	case *Other:
		visitor.DoOther(instr)
	default:
		panic(instr)
	}
}

// IterateInstructions calls f on each instruction of fn, in block order. The instructions are collected before
// the first call, so f may insert instructions without them being visited.
func IterateInstructions(fn *Function, f func(index int, instr Instruction)) {
	for i, instr := range fn.Instructions() {
		f(i, instr)
	}
}
