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

package memlog

import (
	"os"
	"strconv"
	"sync"
	"unsafe"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
)

// ImportPath is the path under which instrumented sources import this package
const ImportPath = "github.com/awslabs/ar-go-memtrace/runtime/memlog"

// Environment variables configuring the default sink
const (
	EnvFile      = "MEMTRACE_FILE"
	EnvScheme    = "MEMTRACE_SCHEME"
	EnvAppend    = "MEMTRACE_APPEND"
	EnvRetryOpen = "MEMTRACE_RETRY_OPEN"
	EnvBuffered  = "MEMTRACE_BUFFERED"
)

var (
	defaultMu   sync.Mutex
	defaultSink *Sink
	// reopened is set by Shutdown: the next default sink must not truncate the trace
	reopened bool
)

// OptionsFromEnv returns the options of the default sink: the defaults, overridden by the environment variables.
func OptionsFromEnv() Options {
	logger := config.NewLogGroup(nil).WithComponent("memlog")
	opts := Options{Path: os.Getenv(EnvFile), Logger: logger}
	if name := os.Getenv(EnvScheme); name != "" {
		scheme, err := tracefile.SchemeByName(name)
		if err != nil {
			logger.Warnf("%s: %v, using %s", EnvScheme, err, tracefile.BufferScheme.Name)
		} else {
			opts.Scheme = scheme
		}
	}
	opts.Append = envBool(EnvAppend, logger)
	opts.RetryOpen = envBool(EnvRetryOpen, logger)
	opts.Buffered = envBool(EnvBuffered, logger)
	return opts
}

func envBool(name string, logger *config.LogGroup) bool {
	s := os.Getenv(name)
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		logger.Warnf("%s: invalid boolean %q", name, s)
		return false
	}
	return b
}

// Default returns the sink used by LogMemAccess, creating it from the environment on first use.
func Default() *Sink {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSink == nil {
		opts := OptionsFromEnv()
		opts.Append = opts.Append || reopened
		defaultSink = NewSink(opts)
	}
	return defaultSink
}

// SetDefault replaces the sink used by LogMemAccess and returns the previous one, which is not closed.
func SetDefault(s *Sink) *Sink {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultSink
	defaultSink = s
	return prev
}

// SetScheme sets the scheme of the default sink. Instrumented programs call it at initialization with the scheme
// their accesses have been tagged with. An unknown name leaves the scheme unchanged.
func SetScheme(name string) error {
	scheme, err := tracefile.SchemeByName(name)
	if err != nil {
		return err
	}
	Default().SetScheme(scheme)
	return nil
}

// LogMemAccess records an access to addr with the tag kind in the default sink. It is the entry point called by
// instrumented code.
func LogMemAccess(addr unsafe.Pointer, kind int32) {
	Default().Log(addr, kind)
}

// Shutdown flushes and closes the default sink. Records logged afterwards go to a new default sink, which appends
// to the file.
func Shutdown() error {
	defaultMu.Lock()
	s := defaultSink
	defaultSink = nil
	reopened = reopened || s != nil
	defaultMu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
