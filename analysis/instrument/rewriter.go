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
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
	"github.com/awslabs/ar-go-memtrace/internal/funcutil"
)

// Result is the result of instrumenting a function or a module
type Result struct {
	// Modified is true if at least one logging call has been inserted
	Modified bool
	// Accesses are the instrumented accesses, in instruction order
	Accesses []Access
	// Skipped are the names of the functions that have not been instrumented because they already call the hook
	Skipped []string
}

// Count returns the number of instrumented accesses with the given tag
func (r Result) Count(tag tracefile.Tag) int {
	return funcutil.Sum(r.Accesses, func(a Access) int {
		if a.Tag == tag {
			return 1
		}
		return 0
	})
}

func (r *Result) merge(other Result) {
	r.Modified = r.Modified || other.Modified
	r.Accesses = append(r.Accesses, other.Accesses...)
	r.Skipped = append(r.Skipped, other.Skipped...)
}

// A Rewriter inserts calls to the logging hook before the accesses it classifies. Each call receives the address
// of the access cast to ptr<i8> and the tag of the access. The instrumented instructions are not modified.
type Rewriter struct {
	spec   config.InstrumentationSpec
	scheme tracefile.Scheme
	logger *config.LogGroup

	// checkChains returns an error if f cannot be instrumented because its offset chains are cyclic
	checkChains func(f *ir.Function) error
}

// NewRewriter returns a rewriter for spec. The scheme labels the accesses in the logs and the results; it is
// chosen by spec.SchemeName. It returns an error if the scheme is unknown.
func NewRewriter(spec config.InstrumentationSpec, logger *config.LogGroup) (*Rewriter, error) {
	scheme, err := tracefile.SchemeByName(spec.SchemeName())
	if err != nil {
		return nil, err
	}
	if spec.Hook == "" {
		spec.Hook = config.DefaultHookName
	}
	if logger == nil {
		logger = config.NewLogGroup(nil)
	}
	return &Rewriter{
		spec:   spec,
		scheme: scheme,
		logger: logger,
		checkChains: func(f *ir.Function) error {
			_, err := ir.OffsetChainDepths(f)
			return err
		},
	}, nil
}

// Scheme returns the tag scheme of the rewriter
func (r *Rewriter) Scheme() tracefile.Scheme { return r.scheme }

// InstrumentFunction instruments the loads from the input buffer and the stores to the output buffer of the target.
// The logging hook is declared in the module of the target function if needed.
func (r *Rewriter) InstrumentFunction(target Target) (Result, error) {
	f := target.Function
	if skip, err := r.precheck(f); skip || err != nil {
		if skip {
			return Result{Skipped: []string{f.Name()}}, nil
		}
		return Result{}, err
	}
	c := &collector{scheme: r.scheme, target: &target}
	return r.insertCalls(f, c.collect(f))
}

// InstrumentModule instruments every load and store of every function of m that has a body, except the logging
// hook and the excluded functions. Accesses are tagged by kind. Functions that cannot be instrumented are reported
// in the returned error; the other functions are instrumented.
func (r *Rewriter) InstrumentModule(m *ir.Module) (Result, error) {
	var res Result
	var errs []error
	functions := append([]*ir.Function(nil), m.Functions...)
	for _, f := range functions {
		if f.IsDeclaration() {
			continue
		}
		if IsHookName(f.Name(), r.spec.Hook) {
			r.logger.Infof("skipping instrumentation of %s", f.Name())
			continue
		}
		if r.spec.IsExcluded(f.Name()) {
			r.logger.Tracef("skipping excluded function %s", f.Name())
			continue
		}
		skip, err := r.precheck(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if skip {
			res.Skipped = append(res.Skipped, f.Name())
			continue
		}
		c := &collector{scheme: r.scheme}
		fres, err := r.insertCalls(f, c.collect(f))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.merge(fres)
	}
	return res, errors.Join(errs...)
}

// precheck returns true if f must be skipped because it is already instrumented, or an error if f cannot be
// instrumented
func (r *Rewriter) precheck(f *ir.Function) (bool, error) {
	if f.Module() == nil {
		return false, fmt.Errorf("%s is not in a module: the logging hook cannot be declared", f.Name())
	}
	if err := r.checkChains(f); err != nil {
		return false, err
	}
	if !r.spec.AllowReinstrument && CallsHook(f, r.spec.Hook) {
		r.logger.Infof("%s already calls %s, skipping", f.Name(), r.spec.Hook)
		return true, nil
	}
	return false, nil
}

// insertCalls inserts a logging call before each access. The accesses have been collected before any insertion,
// so the inserted instructions are never instrumented.
func (r *Rewriter) insertCalls(f *ir.Function, accesses []Access) (Result, error) {
	if len(accesses) == 0 {
		return Result{}, nil
	}
	hook, err := GetOrInsertHook(f.Module(), r.spec.Hook)
	if err != nil {
		return Result{}, fmt.Errorf("instrumenting %s: %w", f.Name(), err)
	}
	res := Result{}
	for _, a := range accesses {
		b, err := ir.NewBuilderBefore(a.Instr)
		if err != nil {
			return res, fmt.Errorf("instrumenting %s: %w", f.Name(), err)
		}
		addr := b.Cast(a.Addr, ir.BytePtr)
		if cast, ok := addr.(*ir.Cast); ok {
			cast.SetPos(a.Pos())
		}
		call, err := b.Call(hook, addr, ir.NewConst(ir.Int32, int64(a.Tag)))
		if err != nil {
			return res, fmt.Errorf("instrumenting %s: %w", f.Name(), err)
		}
		call.SetPos(a.Pos())
		r.logger.Debugf("%s: %s", f.Name(), a)
		res.Modified = true
		res.Accesses = append(res.Accesses, a)
	}
	return res, nil
}
