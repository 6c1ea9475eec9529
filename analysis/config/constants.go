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

package config

const (
	// ModeFunction instruments only the loads from the input buffer and the stores to the output buffer of the
	// target function
	ModeFunction = "function"
	// ModeModule instruments every load and store of every function that is not excluded
	ModeModule = "module"

	// SchemeBuffer labels tag 0 as INPUT and tag 1 as OUTPUT
	SchemeBuffer = "buffer"
	// SchemeAccess labels tag 0 as LOAD and tag 1 as STORE
	SchemeAccess = "access"

	// FunctionPassName is the pipeline name of the target function pass
	FunctionPassName = "tflite-buffer-profiler"
	// ModulePassName is the pipeline name of the whole-module pass
	ModulePassName = "tflite-memory-profiler"

	// DefaultHookName is the name of the logging entry point
	DefaultHookName = "logMemAccess"
	// DefaultTracePath is the file the runtime sink writes to
	DefaultTracePath = "memory_trace.txt"

	// DefaultTargetName is the substring identifying the fully-connected kernel
	DefaultTargetName = "FullyConnected"
	// DefaultTargetArity is the number of arguments of the fully-connected kernel
	DefaultTargetArity = 9
	// DefaultInputIndex is the position of the input buffer in the kernel's arguments
	DefaultInputIndex = 2
	// DefaultOutputIndex is the position of the output buffer in the kernel's arguments
	DefaultOutputIndex = 8
)
