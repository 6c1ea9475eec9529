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
	"bufio"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
)

// Options configures a Sink
type Options struct {
	// Path is the trace file. Defaults to memory_trace.txt in the working directory.
	Path string
	// Scheme labels the tags. Defaults to the buffer scheme.
	Scheme tracefile.Scheme
	// Append keeps the content of an existing trace file. By default the file is truncated when it is opened.
	Append bool
	// RetryOpen makes every record re-attempt to open the file after a failure. By default the sink gives up after
	// the first failure and drops every later record.
	RetryOpen bool
	// Buffered keeps the records in memory until Flush or Close. By default every record reaches the file before
	// Log returns, so that a program exiting without Shutdown keeps its trace.
	Buffered bool
	// Logger receives the errors of the sink. Defaults to a logger on stderr.
	Logger *config.LogGroup
}

// OptionsFromConfig returns the options described by the sink section of cfg, labelling the tags with the scheme of
// the instrumentation section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	scheme, err := tracefile.SchemeByName(cfg.Instrumentation.SchemeName())
	if err != nil {
		return Options{}, err
	}
	return Options{
		Path:      cfg.Sink.Path,
		Scheme:    scheme,
		Append:    cfg.Sink.Append,
		RetryOpen: cfg.Sink.RetryOpen,
		Buffered:  cfg.Sink.Buffered,
		Logger:    config.NewLogGroup(cfg),
	}, nil
}

// A Sink appends one line per access to a trace file. The file is opened by the first record. Records from
// different goroutines are serialized: lines never interleave.
type Sink struct {
	mu      sync.Mutex
	opts    Options
	file    *os.File
	w       *bufio.Writer
	buf     []byte
	failed  bool
	closed  bool
	dropped uint64
}

// NewSink returns a sink that has not opened its file yet
func NewSink(opts Options) *Sink {
	if opts.Path == "" {
		opts.Path = config.DefaultTracePath
	}
	if opts.Scheme.Name == "" {
		opts.Scheme = tracefile.BufferScheme
	}
	if opts.Logger == nil {
		opts.Logger = config.NewLogGroup(nil).WithComponent("memlog")
	}
	return &Sink{opts: opts}
}

// Path returns the trace file of the sink
func (s *Sink) Path() string { return s.opts.Path }

// Scheme returns the scheme labelling the records
func (s *Sink) Scheme() tracefile.Scheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Scheme
}

// SetScheme changes the labels of the records written after the call
func (s *Sink) SetScheme(scheme tracefile.Scheme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Scheme = scheme
}

// Log records an access to addr with the given tag.
func (s *Sink) Log(addr unsafe.Pointer, tag int32) {
	s.LogAddress(uintptr(addr), tracefile.Tag(tag))
}

// LogAddress records an access to the address with the given tag. Tags outside the scheme are labelled UNKNOWN(n).
func (s *Sink) LogAddress(addr uintptr, tag tracefile.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open() {
		s.dropped++
		return
	}
	s.buf = tracefile.AppendRecord(s.buf[:0], s.opts.Scheme.Label(tag), uint64(addr))
	if _, err := s.w.Write(s.buf); err != nil {
		s.dropped++
		s.opts.Logger.Errorf("could not write to trace file %s: %v", s.opts.Path, err)
		return
	}
	if !s.opts.Buffered {
		if err := s.w.Flush(); err != nil {
			s.dropped++
			s.opts.Logger.Errorf("could not write to trace file %s: %v", s.opts.Path, err)
		}
	}
}

// open opens the file if needed and returns true if records can be written. s.mu must be held.
func (s *Sink) open() bool {
	if s.w != nil {
		return true
	}
	if s.closed || (s.failed && !s.opts.RetryOpen) {
		return false
	}
	flags := os.O_CREATE | os.O_WRONLY
	if s.opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(s.opts.Path, flags, 0o644)
	if err != nil {
		s.failed = true
		s.opts.Logger.Errorf("could not open trace file: %v", err)
		return false
	}
	s.failed = false
	s.file = f
	s.w = bufio.NewWriter(f)
	return true
}

// Flush writes the buffered records to the file
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("could not flush trace file %s: %w", s.opts.Path, err)
	}
	return nil
}

// Close flushes and closes the file. Records logged after Close are dropped.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.w == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.w, s.file = nil, nil
	if flushErr != nil {
		return fmt.Errorf("could not flush trace file %s: %w", s.opts.Path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("could not close trace file %s: %w", s.opts.Path, closeErr)
	}
	return nil
}

// Dropped returns the number of records that could not be written
func (s *Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
