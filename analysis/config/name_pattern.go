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

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// A NamePattern identifies functions by name. The pattern is seen as a regex if it can be compiled to a regex,
// otherwise it is a plain substring. Regexes are not anchored, so a plain identifier like "Profiler" matches any
// name that contains it.
type NamePattern struct {
	pattern string
	// This will not be part of the yaml config
	regex *regexp.Regexp
}

// NewNamePattern returns the pattern for s, compiling it to a regex when possible.
func NewNamePattern(s string) NamePattern {
	p := NamePattern{pattern: s}
	if r, err := regexp.Compile(s); err == nil {
		p.regex = r
	}
	return p
}

// MustNamePattern is NewNamePattern for patterns that must be compilable regexes. It panics otherwise.
func MustNamePattern(s string) NamePattern {
	p := NewNamePattern(s)
	if p.regex == nil {
		panic(fmt.Sprintf("invalid name pattern %q", s))
	}
	return p
}

// Match returns true if name matches the pattern. The empty pattern matches nothing.
func (p NamePattern) Match(name string) bool {
	if p.pattern == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(name)
	}
	return strings.Contains(name, p.pattern)
}

// IsRegex returns true if the pattern has been compiled to a regex
func (p NamePattern) IsRegex() bool {
	return p.regex != nil
}

func (p NamePattern) String() string {
	return p.pattern
}

// UnmarshalYAML implements yaml.Unmarshaler for patterns written as plain strings.
func (p *NamePattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: name pattern must be a string: %w", value.Line, err)
	}
	*p = NewNamePattern(s)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (p NamePattern) MarshalYAML() (any, error) {
	return p.pattern, nil
}
