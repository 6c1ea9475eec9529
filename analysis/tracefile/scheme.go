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

// Package tracefile defines the tags passed to the logging hook, the labels that name them in a trace, and the
// format of the trace files written by the runtime sink.
//
// The same [Scheme] value is used by the instrumentation to pick the tags and by the sink to print them, so the
// labels of a trace always match the meaning of the tags.
package tracefile

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
)

// A Tag is the integer passed as second argument to the logging hook.
type Tag int32

const (
	// TagInput marks a load from the tracked input buffer (buffer scheme)
	TagInput Tag = 0
	// TagOutput marks a store to the tracked output buffer (buffer scheme)
	TagOutput Tag = 1
	// TagLoad marks a load (access scheme)
	TagLoad Tag = 0
	// TagStore marks a store (access scheme)
	TagStore Tag = 1
)

// NumTags is the number of tags of every scheme
const NumTags = 2

// A Scheme names the tags.
type Scheme struct {
	Name   string
	Labels [NumTags]string
}

var (
	// BufferScheme labels accesses by the buffer they touch
	BufferScheme = Scheme{Name: config.SchemeBuffer, Labels: [NumTags]string{"INPUT", "OUTPUT"}}

	// AccessScheme labels accesses by the kind of instruction
	AccessScheme = Scheme{Name: config.SchemeAccess, Labels: [NumTags]string{"LOAD", "STORE"}}
)

// SchemeByName returns the scheme with the given name. The empty name is the buffer scheme.
func SchemeByName(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "", config.SchemeBuffer:
		return BufferScheme, nil
	case config.SchemeAccess:
		return AccessScheme, nil
	default:
		return Scheme{}, fmt.Errorf("unknown tag scheme %q", name)
	}
}

// Label returns the name of the tag. Tags outside the scheme are labelled UNKNOWN(n).
func (s Scheme) Label(t Tag) string {
	if t < 0 || int(t) >= NumTags {
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
	return s.Labels[t]
}

// TagOf returns the tag named by label, and false if the scheme has no such label.
func (s Scheme) TagOf(label string) (Tag, bool) {
	for i, l := range s.Labels {
		if l == label {
			return Tag(i), true
		}
	}
	return 0, false
}

func (s Scheme) String() string {
	return fmt.Sprintf("%s{%s}", s.Name, strings.Join(s.Labels[:], ","))
}
