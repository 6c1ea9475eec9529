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
Package config provides a simple way to manage configuration files.

Use [LoadFromFiles](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. The other fields are defined by the types of the fields of [Config] and nested struct types.
For example, a valid config file is as follows:

	options:
	  log-level: 4
	instrumentation:
	  mode: function
	  hook: logMemAccess
	  target:
	    name: FullyConnected
	    arity: 9
	    input-index: 2
	    output-index: 8
	  exclusions:
	    - Profiler
	sink:
	  path: memory_trace.txt

# Identifying functions

The config uses [NamePattern] to identify functions: the target function and the functions excluded from the
instrumentation. An important feature of the name patterns is that the strings are seen as regexes if they can be
compiled to regexes, otherwise they are substrings.

# Tag schemes

The instrumentation passes two-valued tags to the logging hook. The "buffer" scheme labels them INPUT and OUTPUT,
the "access" scheme labels them LOAD and STORE. When no scheme is given, the function mode uses "buffer" and the
module mode uses "access", unless legacy-labels is set.
*/
package config
