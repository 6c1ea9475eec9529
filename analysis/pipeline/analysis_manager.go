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

package pipeline

import (
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
)

// ErrUnknownAnalysis is returned when a result is requested for an analysis that has not been registered
var ErrUnknownAnalysis = errors.New("unknown analysis")

// An AnalysisFunc computes the result of an analysis on a function
type AnalysisFunc func(f *ir.Function, am *AnalysisManager) (any, error)

type cachedResult struct {
	value any
	err   error
}

// AnalysisManager caches the results of the analyses of functions, until a pass invalidates them. It also stores
// the errors the passes encounter, since passes never abort the pipeline.
type AnalysisManager struct {
	// Logger is used to report cache activity at trace level
	Logger *config.LogGroup

	analyses map[string]AnalysisFunc
	results  map[*ir.Function]map[string]cachedResult
	hits     int
	misses   int

	// Stored errors, in the order they were added
	errors []error
}

// NewAnalysisManager returns an analysis manager without analyses
func NewAnalysisManager(logger *config.LogGroup) *AnalysisManager {
	if logger == nil {
		logger = config.NewLogGroup(nil)
	}
	return &AnalysisManager{
		Logger:   logger,
		analyses: map[string]AnalysisFunc{},
		results:  map[*ir.Function]map[string]cachedResult{},
	}
}

// RegisterAnalysis registers analysis fn under name. It returns an error if name is already registered.
func (am *AnalysisManager) RegisterAnalysis(name string, fn AnalysisFunc) error {
	if _, ok := am.analyses[name]; ok {
		return fmt.Errorf("analysis %q is already registered", name)
	}
	am.analyses[name] = fn
	return nil
}

// IsRegistered returns true if an analysis is registered under name
func (am *AnalysisManager) IsRegistered(name string) bool {
	_, ok := am.analyses[name]
	return ok
}

// GetResult returns the result of the analysis name on f, computing it if it is not cached. Errors of the
// analysis are cached like results.
func (am *AnalysisManager) GetResult(name string, f *ir.Function) (any, error) {
	fn, ok := am.analyses[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnalysis, name)
	}
	if r, ok := am.results[f][name]; ok {
		am.hits++
		return r.value, r.err
	}
	am.misses++
	am.Logger.Tracef("computing analysis %s on %s", name, f.Name())
	value, err := fn(f, am)
	if am.results[f] == nil {
		am.results[f] = map[string]cachedResult{}
	}
	am.results[f][name] = cachedResult{value, err}
	return value, err
}

// GetResultAs returns the result of the analysis name on f with the type T
func GetResultAs[T any](am *AnalysisManager, name string, f *ir.Function) (T, error) {
	var zero T
	r, err := am.GetResult(name, f)
	if err != nil {
		return zero, err
	}
	t, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("analysis %s returned a %T, not a %T", name, r, zero)
	}
	return t, nil
}

// IsCached returns true if the result of the analysis name on f is cached
func (am *AnalysisManager) IsCached(name string, f *ir.Function) bool {
	_, ok := am.results[f][name]
	return ok
}

// Invalidate drops the cached results on f of the analyses that are not preserved by pa
func (am *AnalysisManager) Invalidate(f *ir.Function, pa PreservedAnalyses) {
	if pa.AreAllPreserved() {
		return
	}
	for name := range am.results[f] {
		if !pa.IsPreserved(name) {
			am.Logger.Tracef("invalidating analysis %s on %s", name, f.Name())
			delete(am.results[f], name)
		}
	}
}

// InvalidateAll drops the cached results on every function of the analyses that are not preserved by pa
func (am *AnalysisManager) InvalidateAll(pa PreservedAnalyses) {
	for f := range am.results {
		am.Invalidate(f, pa)
	}
}

// Stats returns the number of results found in the cache and the number of results computed
func (am *AnalysisManager) Stats() (hits int, misses int) {
	return am.hits, am.misses
}

// AddError stores an error reported by a pass
func (am *AnalysisManager) AddError(e error) {
	if e != nil {
		am.errors = append(am.errors, e)
	}
}

// Errors returns the errors reported by the passes
func (am *AnalysisManager) Errors() []error {
	return am.errors
}

// CheckError returns all the errors reported by the passes joined together, or nil
func (am *AnalysisManager) CheckError() error {
	return errors.Join(am.errors...)
}
