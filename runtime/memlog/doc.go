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
Package memlog is the runtime side of the instrumentation: it receives the address and the tag of every
instrumented access and writes them to a trace file, one line per access:

	INPUT 0xc000012080
	OUTPUT 0xc0000140a0

Instrumented sources call [LogMemAccess], which writes to the default [Sink]. The default sink is configured by
the environment variables MEMTRACE_FILE (the trace file, memory_trace.txt by default), MEMTRACE_SCHEME (buffer or
access), MEMTRACE_APPEND, MEMTRACE_RETRY_OPEN and MEMTRACE_BUFFERED. Every record is written to the file before
LogMemAccess returns, so the trace survives os.Exit and panics. With MEMTRACE_BUFFERED, records are kept in memory
and the program must call [Shutdown] before exiting; the source rewriter inserts the call at the start of main.

If the trace file cannot be opened, the error is logged and the access is dropped. Unless the sink retries, every
later access is dropped silently.
*/
package memlog
