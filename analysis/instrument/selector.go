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

package instrument

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/internal/funcutil"
)

// A Target is a function selected for instrumentation, with its tracked input and output buffers
type Target struct {
	Function *ir.Function
	Input    *ir.Parameter
	Output   *ir.Parameter
}

func (t Target) String() string {
	return fmt.Sprintf("%s(input=%s, output=%s)", t.Function.Name(), t.Input.Ref(), t.Output.Ref())
}

// A Selector decides whether a function is the target of the instrumentation. Selection never modifies the
// function.
type Selector struct {
	profile    config.TargetProfile
	hook       string
	exclusions []config.NamePattern
	logger     *config.LogGroup
}

// NewSelector returns a selector for the target profile of spec. It returns an error if the profile is invalid.
func NewSelector(spec config.InstrumentationSpec, logger *config.LogGroup) (*Selector, error) {
	if err := spec.Target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target profile: %w", err)
	}
	hook := spec.Hook
	if hook == "" {
		hook = config.DefaultHookName
	}
	if logger == nil {
		logger = config.NewLogGroup(nil)
	}
	return &Selector{profile: spec.Target, hook: hook, exclusions: spec.Exclusions, logger: logger}, nil
}

// Select returns the target and its buffers if f is the target function, None otherwise
func (s *Selector) Select(f *ir.Function) funcutil.Optional[Target] {
	if reason := s.reject(f); reason != "" {
		s.logger.Tracef("not a target: %s: %s", f.Name(), reason)
		return funcutil.None[Target]()
	}
	return funcutil.Some(Target{
		Function: f,
		Input:    f.Params[s.profile.InputIndex],
		Output:   f.Params[s.profile.OutputIndex],
	})
}

// reject returns the reason why f is not a target, or the empty string if f is the target
func (s *Selector) reject(f *ir.Function) string {
	switch {
	case !s.profile.Name.Match(f.Name()):
		return fmt.Sprintf("name does not match %q", s.profile.Name)
	case len(f.Params) != s.profile.Arity:
		return fmt.Sprintf("%d parameters instead of %d", len(f.Params), s.profile.Arity)
	case f.IsDeclaration():
		return "no body"
	case IsHookName(f.Name(), s.hook):
		return "logging entry point"
	}
	for _, p := range s.exclusions {
		if p.Match(f.Name()) {
			return fmt.Sprintf("excluded by %q", p)
		}
	}
	return ""
}

// IsHookName returns true if the function name designates the logging entry point hook. The comparison ignores
// the package qualifier, the case and the underscores, so that logMemAccess, log_mem_access and
// memlog.LogMemAccess all designate the same hook.
func IsHookName(name string, hook string) bool {
	return normalizeName(baseName(name)) == normalizeName(baseName(hook))
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
