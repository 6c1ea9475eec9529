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
Package instrument inserts calls to a logging hook before the memory accesses of functions.

The buffer profiler selects the target function by its name and number of parameters (see Selector), then
instruments the loads whose address is derived from the input buffer parameter and the stores whose address is
derived from the output buffer parameter. An address is derived from a parameter when following the base operands
of offset computations from the address leads to the parameter (see TraceOrigin).

The memory profiler instruments every load and store of a module, except in the logging hook itself and in the
excluded functions.

Before each instrumented access, the rewriter inserts:

	%a = cast <address> to ptr<i8>
	call @logMemAccess(%a, i32 <tag>)

where the tag is 0 for INPUT (or LOAD) and 1 for OUTPUT (or STORE). Both profilers are available as passes of
package pipeline through the plugin returned by NewPlugin.
*/
package instrument
