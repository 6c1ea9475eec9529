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
	"embed"
	"errors"
	"io"
	"testing"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/ir"
	"github.com/awslabs/ar-go-memtrace/analysis/pipeline"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
)

//go:embed testdata
var testFS embed.FS

func loadModule(t *testing.T, name string) *ir.Module {
	t.Helper()
	b, err := testFS.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("could not read %s: %s", name, err)
	}
	m, err := ir.DecodeModule(b)
	if err != nil {
		t.Fatalf("could not decode %s: %s", name, err)
	}
	return m
}

func quietLogger() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(io.Discard)
	return l
}

func defaultSpec() config.InstrumentationSpec {
	return config.NewDefault().Instrumentation
}

func newSelector(t *testing.T) *Selector {
	s, err := NewSelector(defaultSpec(), quietLogger())
	if err != nil {
		t.Fatalf("could not create selector: %s", err)
	}
	return s
}

func newRewriter(t *testing.T, spec config.InstrumentationSpec) *Rewriter {
	r, err := NewRewriter(spec, quietLogger())
	if err != nil {
		t.Fatalf("could not create rewriter: %s", err)
	}
	return r
}

// hookCalls returns the calls to the logging hook in f, in order
func hookCalls(f *ir.Function) []*ir.Call {
	var calls []*ir.Call
	for _, instr := range f.Instructions() {
		if c, ok := instr.(*ir.Call); ok && c.Callee.Name() == config.DefaultHookName {
			calls = append(calls, c)
		}
	}
	return calls
}

func tagOf(t *testing.T, c *ir.Call) tracefile.Tag {
	k, ok := c.Args[1].(*ir.Const)
	if !ok {
		t.Fatalf("tag of %s is not a constant", c)
	}
	return tracefile.Tag(k.Int)
}

func TestSelectScenario(t *testing.T) {
	m := loadModule(t, "scenario.yaml")
	f := m.Functions[0]
	target, ok := newSelector(t).Select(f).Get()
	if !ok {
		t.Fatalf("%s should be selected", f.Name())
	}
	if target.Input != f.Params[2] || target.Output != f.Params[8] {
		t.Errorf("unexpected buffers %s", target)
	}
}

func TestSelectRejects(t *testing.T) {
	m := loadModule(t, "nonmatching.yaml")
	s := newSelector(t)
	for _, f := range m.Functions {
		before := f.String()
		if s.Select(f).IsSome() {
			t.Errorf("%s should not be selected", f.Name())
		}
		if f.String() != before {
			t.Errorf("selection modified %s", f.Name())
		}
	}

	spec := defaultSpec()
	spec.Target.Name = config.MustNamePattern("log")
	spec.Target.Arity = 2
	spec.Target.InputIndex, spec.Target.OutputIndex = 0, 1
	hookSelector, err := NewSelector(spec, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	hookModule := loadModule(t, "module.yaml")
	if hookSelector.Select(hookModule.Func("log_mem_access")).IsSome() {
		t.Errorf("the logging hook should never be selected")
	}

	spec = defaultSpec()
	spec.Exclusions = append(spec.Exclusions, config.MustNamePattern("reference_ops"))
	excluding, err := NewSelector(spec, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if excluding.Select(loadModule(t, "scenario.yaml").Functions[0]).IsSome() {
		t.Errorf("excluded function should not be selected")
	}
}

func TestNewSelectorInvalidProfile(t *testing.T) {
	for _, p := range []config.TargetProfile{
		{Name: config.MustNamePattern("F"), Arity: 0},
		{Name: config.MustNamePattern("F"), Arity: 3, InputIndex: 1, OutputIndex: 1},
		{Name: config.MustNamePattern("F"), Arity: 3, InputIndex: 0, OutputIndex: 3},
		{Name: config.MustNamePattern("F"), Arity: 3, InputIndex: -1, OutputIndex: 2},
	} {
		spec := defaultSpec()
		spec.Target = p
		if _, err := NewSelector(spec, nil); err == nil {
			t.Errorf("expected an error for profile %+v", p)
		}
	}
}

func TestTraceOrigin(t *testing.T) {
	f := ir.NewFunction("f", ir.Void)
	p := f.AddParam("p", &ir.PointerType{Elem: ir.Int32})
	b := ir.NewBuilder(f.NewBlock())
	var v ir.Value = p
	for n := 0; n <= 5; n++ {
		origin, steps := TraceOrigin(v)
		if origin != ir.Value(p) || steps != n {
			t.Errorf("chain of %d offsets: got origin %s in %d steps", n, origin.Ref(), steps)
		}
		v = b.OffsetAddr(v, p.Type(), ir.NewConst(ir.Int64, 1))
	}
	cast := b.Cast(p, ir.BytePtr)
	if origin, steps := TraceOrigin(cast); origin != cast || steps != 0 {
		t.Errorf("casts should not be followed")
	}
}

func TestClassifyChained(t *testing.T) {
	m := loadModule(t, "chained.yaml")
	f := m.Functions[0]
	target := newSelector(t).Select(f).Value()
	var accesses []Access
	for _, instr := range f.Instructions() {
		if a, ok := Classify(instr, target); ok {
			accesses = append(accesses, a)
		}
	}
	if len(accesses) != 2 {
		t.Fatalf("expected 2 accesses, got %v", accesses)
	}
	if accesses[0].Tag != tracefile.TagInput || accesses[0].Steps != 2 || accesses[0].Label != "INPUT" {
		t.Errorf("unexpected first access %s", accesses[0])
	}
	if accesses[1].Tag != tracefile.TagOutput || accesses[1].Steps != 0 || accesses[1].Label != "OUTPUT" {
		t.Errorf("unexpected second access %s", accesses[1])
	}
}

func TestInstrumentChained(t *testing.T) {
	m := loadModule(t, "chained.yaml")
	f := m.Functions[0]
	target := newSelector(t).Select(f).Value()
	original := f.Instructions()
	operands := make([][]ir.Value, len(original))
	for i, instr := range original {
		operands[i] = instr.Operands()
	}

	res, err := newRewriter(t, defaultSpec()).InstrumentFunction(target)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !res.Modified || len(res.Accesses) != 2 {
		t.Fatalf("expected two instrumented accesses, got %+v", res)
	}
	calls := hookCalls(f)
	if len(calls) != 2 || tagOf(t, calls[0]) != tracefile.TagInput || tagOf(t, calls[1]) != tracefile.TagOutput {
		t.Fatalf("expected an INPUT call then an OUTPUT call:\n%s", f)
	}
	hook := m.Func(config.DefaultHookName)
	if hook == nil || !hook.IsDeclaration() || !ir.TypesEqual(hook.Signature(), ir.HookSignature) {
		t.Fatalf("expected the hook to be declared")
	}

	// the original instructions are unchanged and in the same order
	j := 0
	for _, instr := range f.Instructions() {
		if j < len(original) && instr == original[j] {
			ops := instr.Operands()
			for k := range ops {
				if ops[k] != operands[j][k] {
					t.Errorf("operand %d of %s changed", k, instr)
				}
			}
			j++
		}
	}
	if j != len(original) {
		t.Errorf("only %d of the %d original instructions found in order", j, len(original))
	}

	// each call is right before its access and receives its address
	for i, a := range res.Accesses {
		block := a.Instr.Block()
		idx := block.IndexOf(a.Instr)
		if block.Instrs[idx-1] != ir.Instruction(calls[i]) {
			t.Errorf("call %d is not right before %s", i, a.Instr)
		}
		cast, ok := calls[i].Args[0].(*ir.Cast)
		if !ok || cast.X != a.Addr || !ir.TypesEqual(cast.Type(), ir.BytePtr) {
			t.Errorf("call %d does not receive the address of the access: %s", i, calls[i])
		}
	}
	if err := ir.Verify(f); err != nil {
		t.Errorf("instrumented function does not verify: %s", err)
	}
}

func TestInstrumentScenario(t *testing.T) {
	m := loadModule(t, "scenario.yaml")
	f := m.Functions[0]
	filterLoad := f.Lookup("w").(*ir.Load)
	target := newSelector(t).Select(f).Value()
	res, err := newRewriter(t, defaultSpec()).InstrumentFunction(target)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	calls := hookCalls(f)
	if len(calls) != 3 || res.Count(tracefile.TagInput) != 2 || res.Count(tracefile.TagOutput) != 1 {
		t.Fatalf("expected 2 INPUT and 1 OUTPUT calls, got %d calls:\n%s", len(calls), f)
	}
	idx := filterLoad.Block().IndexOf(filterLoad)
	if c, ok := filterLoad.Block().Instrs[idx-1].(*ir.Call); ok && c.Callee.Name() == config.DefaultHookName {
		t.Errorf("the load from the filter buffer should not be instrumented")
	}
}

func TestInstrumentIsIdempotent(t *testing.T) {
	m := loadModule(t, "scenario.yaml")
	f := m.Functions[0]
	target := newSelector(t).Select(f).Value()
	r := newRewriter(t, defaultSpec())
	if _, err := r.InstrumentFunction(target); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	n := f.NumInstrs()
	res, err := r.InstrumentFunction(target)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if res.Modified || f.NumInstrs() != n || len(res.Skipped) != 1 {
		t.Errorf("second run should skip the function, got %+v", res)
	}

	spec := defaultSpec()
	spec.AllowReinstrument = true
	res, err = newRewriter(t, spec).InstrumentFunction(target)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !res.Modified || len(hookCalls(f)) != 6 {
		t.Errorf("reinstrumentation should add 3 calls, got %d", len(hookCalls(f)))
	}
}

func TestInstrumentSkipsExternalHookCalls(t *testing.T) {
	m := loadModule(t, "scenario.yaml")
	f := m.Functions[0]
	b, err := ir.NewBuilderBefore(f.Instructions()[0])
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	call := b.Other("invoke", ir.Void)
	if CallsHook(f, config.DefaultHookName) {
		t.Fatalf("an opaque instruction without callee is not a hook call")
	}
	call.Callee = "fmt.Println"
	if CallsHook(f, config.DefaultHookName) {
		t.Fatalf("fmt.Println is not the logging hook")
	}
	call.Callee = "github.com/awslabs/ar-go-memtrace/runtime/memlog.LogMemAccess"
	if !CallsHook(f, config.DefaultHookName) {
		t.Fatalf("memlog.LogMemAccess should be recognized as the logging hook")
	}

	n := f.NumInstrs()
	target := newSelector(t).Select(f).Value()
	res, err := newRewriter(t, defaultSpec()).InstrumentFunction(target)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if res.Modified || f.NumInstrs() != n || len(hookCalls(f)) != 0 {
		t.Errorf("a function already calling memlog.LogMemAccess should be skipped, got %+v", res)
	}
}

func TestCallsHookNormalizedName(t *testing.T) {
	m := loadModule(t, "scenario.yaml")
	f := m.Functions[0]
	if _, err := newRewriter(t, defaultSpec()).InstrumentFunction(newSelector(t).Select(f).Value()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for _, hook := range []string{"logMemAccess", "log_mem_access", "memlog.LogMemAccess"} {
		if !CallsHook(f, hook) {
			t.Errorf("CallsHook(%q) should be true for calls to %s", hook, config.DefaultHookName)
		}
	}
	if CallsHook(f, "logAccess") {
		t.Errorf("CallsHook should not match another name")
	}
}

func TestInstrumentHookMismatch(t *testing.T) {
	m := loadModule(t, "hook_mismatch.yaml")
	f := m.Func("FullyConnected")
	before := f.NumInstrs()
	target := newSelector(t).Select(f).Value()
	_, err := newRewriter(t, defaultSpec()).InstrumentFunction(target)
	if !errors.Is(err, ErrHookSignatureMismatch) {
		t.Fatalf("expected ErrHookSignatureMismatch, got %v", err)
	}
	if f.NumInstrs() != before {
		t.Errorf("function should not be modified on a hook mismatch")
	}
}

func TestGetOrInsertHook(t *testing.T) {
	m := ir.NewModule("m")
	h1, err := GetOrInsertHook(m, "logMemAccess")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	h2, err := GetOrInsertHook(m, "logMemAccess")
	if err != nil || h1 != h2 || len(m.Functions) != 1 {
		t.Errorf("second call should return the existing declaration")
	}
}

func TestInstrumentModule(t *testing.T) {
	m := loadModule(t, "module.yaml")
	sizes := map[string]int{}
	for _, f := range m.Functions {
		sizes[f.Name()] = f.NumInstrs()
	}
	res, err := newRewriter(t, config.InstrumentationSpec{
		Mode:       config.ModeModule,
		Hook:       config.DefaultHookName,
		Exclusions: config.DefaultExclusions(),
	}).InstrumentModule(m)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for _, name := range []string{"log_mem_access", "tflite::MicroProfiler::BeginEvent",
		"tflite::RecordingMicroAllocator::PrintAllocations", "memcpy"} {
		if n := m.Func(name).NumInstrs(); n != sizes[name] {
			t.Errorf("%s should not be instrumented", name)
		}
	}
	invoke := m.Func("Invoke")
	calls := hookCalls(invoke)
	if len(calls) != 4 || res.Count(tracefile.TagLoad) != 2 || res.Count(tracefile.TagStore) != 2 {
		t.Fatalf("expected 2 LOAD and 2 STORE calls in Invoke:\n%s", invoke)
	}
	want := []tracefile.Tag{tracefile.TagLoad, tracefile.TagStore, tracefile.TagLoad, tracefile.TagStore}
	for i, c := range calls {
		if tagOf(t, c) != want[i] {
			t.Errorf("call %d: expected tag %d, got %d", i, want[i], tagOf(t, c))
		}
	}
	if res.Accesses[0].Label != "LOAD" || res.Accesses[0].Origin != ir.Value(invoke.Params[0]) {
		t.Errorf("unexpected first access %s", res.Accesses[0])
	}
	if _, ok := res.Accesses[1].Origin.(*ir.Alloc); !ok {
		t.Errorf("store to the allocation should have the allocation as origin, got %s", res.Accesses[1])
	}
}

func TestInstrumentModuleLegacyLabels(t *testing.T) {
	m := loadModule(t, "module.yaml")
	spec := defaultSpec()
	spec.Mode = config.ModeModule
	spec.LegacyLabels = true
	res, err := newRewriter(t, spec).InstrumentModule(m)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if res.Accesses[0].Label != "INPUT" || res.Accesses[1].Label != "OUTPUT" {
		t.Errorf("legacy labels should name loads INPUT and stores OUTPUT, got %s, %s",
			res.Accesses[0].Label, res.Accesses[1].Label)
	}
}

func TestInstrumentModuleCyclicFunction(t *testing.T) {
	m := loadModule(t, "module.yaml")
	f := ir.NewFunction("Cyclic", ir.Void)
	p := f.AddParam("p", &ir.PointerType{Elem: ir.Int32})
	b := ir.NewBuilder(f.NewBlock())
	o1 := b.OffsetAddr(p, p.Type(), ir.NewConst(ir.Int64, 1))
	o2 := b.OffsetAddr(o1, p.Type(), ir.NewConst(ir.Int64, 1))
	o1.X = o2
	b.Load(o2, ir.Int32)
	if err := m.AddFunction(f); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	spec := defaultSpec()
	spec.Mode = config.ModeModule
	res, err := newRewriter(t, spec).InstrumentModule(m)
	if !errors.Is(err, ir.ErrCyclicOffsetChain) {
		t.Fatalf("expected a cyclic chain error, got %v", err)
	}
	if len(hookCalls(f)) != 0 {
		t.Errorf("cyclic function should not be instrumented")
	}
	if len(hookCalls(m.Func("Invoke"))) != 4 || !res.Modified {
		t.Errorf("other functions should still be instrumented")
	}
}

func TestPassesPreservedAnalyses(t *testing.T) {
	m := loadModule(t, "nonmatching.yaml")
	am := pipeline.NewAnalysisManager(quietLogger())
	RegisterAnalyses(am)
	pass, err := NewBufferProfilerPass(defaultSpec(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for _, f := range m.Functions {
		if pa := pass.Run(f, am); !pa.AreAllPreserved() {
			t.Errorf("pass should preserve all analyses of non-target %s", f.Name())
		}
	}

	m = loadModule(t, "scenario.yaml")
	if pa := pass.Run(m.Functions[0], am); pa.AreAllPreserved() {
		t.Errorf("pass should preserve nothing after instrumenting the target")
	}
	if !am.IsCached(OffsetChainsAnalysis, m.Functions[0]) {
		t.Errorf("the pass should query the offset chains through the analysis manager")
	}

	mp, err := NewMemoryProfilerPass(defaultSpec(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if mp.Scheme().Name != config.SchemeAccess || pass.Scheme().Name != config.SchemeBuffer {
		t.Errorf("unexpected schemes %s and %s", mp.Scheme(), pass.Scheme())
	}
	if pa := mp.Run(ir.NewModule("empty"), am); !pa.AreAllPreserved() {
		t.Errorf("module pass should preserve all analyses of a module without accesses")
	}
}

func TestPassHookMismatchReportsError(t *testing.T) {
	m := loadModule(t, "hook_mismatch.yaml")
	am := pipeline.NewAnalysisManager(quietLogger())
	pass, err := NewBufferProfilerPass(defaultSpec(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if pa := pass.Run(m.Func("FullyConnected"), am); !pa.AreAllPreserved() {
		t.Errorf("pass refusing to run should preserve all analyses")
	}
	if !errors.Is(am.CheckError(), ErrHookSignatureMismatch) {
		t.Errorf("expected the mismatch to be reported, got %v", am.CheckError())
	}
}

func TestPluginPipelines(t *testing.T) {
	cfg := config.NewDefault()
	plugin, err := NewPlugin(cfg, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	pb := pipeline.NewPassBuilder(quietLogger())
	if err := pb.LoadPlugin(plugin.Info()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	mpm := pb.BuildDefaultPipeline(pipeline.O2)
	names := mpm.Passes()
	if len(names) != 2 || names[1] != config.FunctionPassName {
		t.Fatalf("expected the buffer profiler at optimizer last, got %v", names)
	}
	m := loadModule(t, "scenario.yaml")
	am := pb.NewAnalysisManager()
	if pa := mpm.Run(m, am); pa.AreAllPreserved() {
		t.Errorf("default pipeline should report a modification")
	}
	if err := am.CheckError(); err != nil {
		t.Errorf("unexpected pipeline error: %s", err)
	}
	if n := len(plugin.Results().Accesses); n != 3 {
		t.Errorf("expected 3 instrumented accesses, got %d", n)
	}

	mpm = pipeline.NewModulePassManager(quietLogger())
	if err := pb.ParsePassPipeline(mpm, "tflite-memory-profiler"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	m = loadModule(t, "module.yaml")
	mpm.Run(m, pb.NewAnalysisManager())
	if len(hookCalls(m.Func("Invoke"))) != 4 {
		t.Errorf("whole-module pass should instrument Invoke")
	}

	cfg.Instrumentation.Mode = config.ModeModule
	pb = pipeline.NewPassBuilder(quietLogger())
	plugin, _ = NewPlugin(cfg, quietLogger())
	_ = pb.LoadPlugin(plugin.Info())
	if names := pb.BuildDefaultPipeline(pipeline.O0).Passes(); names[len(names)-1] != config.ModulePassName {
		t.Errorf("module mode should insert the whole-module pass, got %v", names)
	}
}

func TestIsHookName(t *testing.T) {
	for _, name := range []string{"logMemAccess", "log_mem_access", "memlog.LogMemAccess",
		"github.com/awslabs/ar-go-memtrace/runtime/memlog.LogMemAccess"} {
		if !IsHookName(name, config.DefaultHookName) {
			t.Errorf("%s should designate the hook", name)
		}
	}
	for _, name := range []string{"logMemAccessCount", "Log", "memlog.(*Sink).Log"} {
		if IsHookName(name, config.DefaultHookName) {
			t.Errorf("%s should not designate the hook", name)
		}
	}
}
