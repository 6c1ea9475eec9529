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

/*
Package ir contains the intermediate representation that the instrumentation passes operate on.

A Module is a set of functions. A Function is a list of parameters and of basic blocks, each block being a list of
instructions. The set of instructions is closed:

  - Load reads memory at an address,
  - Store writes a value to memory at an address,
  - OffsetAddr derives an address from a base address and offsets, in the same allocation as its base,
  - Cast reinterprets a value as a value of another type,
  - Call calls a function of the module,
  - Alloc allocates memory,
  - Return terminates the function,
  - Other stands for every other operation.

Parameters, constants and globals are the values that are not instructions.

Modules are built with a Builder, lifted from Go programs (see package ssair) or decoded from YAML with DecodeModule.
A module in YAML looks like:

	name: kernel
	functions:
	  - name: logMemAccess
	    params: [{name: addr, type: ptr<i8>}, {name: kind, type: i32}]
	  - name: FullyConnected
	    params: [{name: input, type: ptr<i32>}, {name: output, type: ptr<i32>}]
	    blocks:
	      - instrs:
	          - {op: offset, name: p, type: ptr<i32>, args: ["%input", "i64 1"]}
	          - {op: load, name: x, type: i32, args: ["%p"]}
	          - {op: store, args: ["%x", "%output"]}
	          - {op: ret}

Functions without blocks are declarations.
*/
package ir
