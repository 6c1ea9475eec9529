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

// Package ssair lifts the SSA form of Go programs (golang.org/x/tools/go/ssa) to the IR of the instrumentation.
//
// Dereferences become Load instructions, stores become Store, field and element addresses become OffsetAddr,
// allocations become Alloc, and pointer conversions become Cast. Every other instruction is an Other instruction.
// Parameters stay parameters; globals, free variables, functions and non-integer constants become opaque globals.
// Each lifted instruction keeps the position of its SSA instruction, which for the accesses x[i] and *p is the
// position of the bracket and of the star.
package ssair
