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

package srcrewrite_test

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/instrument"
	"github.com/awslabs/ar-go-memtrace/analysis/srcrewrite"
	"github.com/awslabs/ar-go-memtrace/analysis/ssair"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
	"github.com/awslabs/ar-go-memtrace/internal/analysistest"
	"github.com/awslabs/ar-go-memtrace/runtime/memlog"
)

func quietLogger() *config.LogGroup {
	l := config.NewLogGroup(nil)
	l.SetAllOutput(&bytes.Buffer{})
	return l
}

func load(t *testing.T) (analysistest.LoadedTestProgram, *ssair.Lifted) {
	program := analysistest.LoadTest(t, "./testdata/kernel", nil, analysistest.LoadTestOptions{})
	lifted, err := ssair.LiftProgram(program.Program, ssair.PackageFilter(program.SSAPackages()...))
	if err != nil {
		t.Fatalf("lifting failed: %v", err)
	}
	return program, lifted
}

// logCall is a call memlog.LogMemAccess(addr, tag) in a rewritten file, with the statement it precedes
type logCall struct {
	addr string
	tag  string
	next ast.Stmt
}

// parseLogCalls parses the rewritten source and returns its logging calls
func parseLogCalls(t *testing.T, src []byte) (*ast.File, []logCall) {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "rewritten.go", src, 0)
	if err != nil {
		t.Fatalf("rewritten source does not parse: %v\n%s", err, src)
	}
	var calls []logCall
	ast.Inspect(f, func(n ast.Node) bool {
		block, ok := n.(*ast.BlockStmt)
		if !ok {
			return true
		}
		for i, stmt := range block.List {
			es, ok := stmt.(*ast.ExprStmt)
			if !ok {
				continue
			}
			call, ok := es.X.(*ast.CallExpr)
			if !ok || types.ExprString(call.Fun) != "memlog.LogMemAccess" || len(call.Args) != 2 {
				continue
			}
			var next ast.Stmt
			if i+1 < len(block.List) {
				next = block.List[i+1]
			}
			calls = append(calls, logCall{types.ExprString(call.Args[0]), types.ExprString(call.Args[1]), next})
		}
		return true
	})
	return f, calls
}

func canonical(t *testing.T, expr string) string {
	e, err := parser.ParseExpr(expr)
	if err != nil {
		t.Fatalf("bad expression %q: %v", expr, err)
	}
	return types.ExprString(e)
}

// contains returns true if the statement contains the expression
func contains(stmt ast.Stmt, expr string) bool {
	found := false
	ast.Inspect(stmt, func(n ast.Node) bool {
		if e, ok := n.(ast.Expr); ok && types.ExprString(e) == expr {
			found = true
		}
		return !found
	})
	return found
}

func TestRewriteTarget(t *testing.T) {
	program, lifted := load(t)
	spec := program.Config.Instrumentation
	selector, err := instrument.NewSelector(spec, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	rw, err := instrument.NewRewriter(spec, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	var accesses []instrument.Access
	for _, f := range lifted.Module.Functions {
		if target, ok := selector.Select(f).Get(); ok {
			res, err := rw.InstrumentFunction(target)
			if err != nil {
				t.Fatal(err)
			}
			accesses = append(accesses, res.Accesses...)
		}
	}
	if len(accesses) != 6 {
		t.Fatalf("expected 6 classified accesses, got %d", len(accesses))
	}

	res, err := srcrewrite.Rewrite(program.LoadedProgram, accesses,
		srcrewrite.Options{Scheme: tracefile.BufferScheme, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("inserted %d logging statements, want 2", res.Inserted)
	}
	reasons := res.SkipReasons()
	for _, reason := range []string{
		"conditionally evaluated operand",
		"in a loop header",
		"the address has side effects",
		"ignored by directive",
	} {
		if reasons[reason] != 1 {
			t.Errorf("expected one access skipped with reason %q, got %v", reason, reasons)
		}
	}

	files := res.Files()
	if len(files) != 1 || filepath.Base(files[0]) != "main.go" {
		t.Fatalf("unexpected rewritten files %v", files)
	}
	var buf bytes.Buffer
	if err := res.Fprint(&buf, files[0]); err != nil {
		t.Fatalf("print failed: %v", err)
	}
	f, calls := parseLogCalls(t, buf.Bytes())
	want := map[string]string{
		canonical(t, "unsafe.Pointer(&input[o*depth+d])"): "0",
		canonical(t, "unsafe.Pointer(&output[o])"):         "1",
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d logging calls, got %d:\n%s", len(want), len(calls), buf.String())
	}
	for _, c := range calls {
		tag, ok := want[c.addr]
		if !ok || tag != c.tag {
			t.Errorf("unexpected logging call with %s, %s", c.addr, c.tag)
			continue
		}
		access := strings.TrimSuffix(strings.TrimPrefix(c.addr, "unsafe.Pointer(&"), ")")
		if c.next == nil || !contains(c.next, access) {
			t.Errorf("logging call for %s does not precede the statement of the access", access)
		}
	}

	imports := map[string]bool{}
	for _, imp := range f.Imports {
		imports[strings.Trim(imp.Path.Value, `"`)] = true
	}
	if !imports["unsafe"] || !imports[memlog.ImportPath] {
		t.Errorf("missing imports, got %v", imports)
	}
	src := buf.String()
	if !strings.Contains(src, "defer memlog.Shutdown()") {
		t.Errorf("main does not shut down the sink:\n%s", src)
	}
	if !strings.Contains(src, `memlog.SetScheme("buffer")`) {
		t.Errorf("the scheme of the sink is not set:\n%s", src)
	}

	out := t.TempDir()
	written, err := res.WriteFiles(program.Dir, out)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected one written file, got %v", written)
	}
	b, err := os.ReadFile(filepath.Join(out, "main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, buf.Bytes()) {
		t.Errorf("written file differs from the printed one")
	}
}

func TestRewriteModuleAccesses(t *testing.T) {
	program, lifted := load(t)
	spec := config.NewDefault().Instrumentation
	spec.Mode = config.ModeModule
	rw, err := instrument.NewRewriter(spec, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := rw.InstrumentModule(lifted.Module)
	if err != nil {
		t.Fatal(err)
	}
	var accesses []instrument.Access
	for _, a := range res.Accesses {
		if strings.HasSuffix(a.Function().Name(), ".bump") {
			accesses = append(accesses, a)
		}
	}
	if len(accesses) != 2 {
		t.Fatalf("expected a load and a store in bump, got %d accesses", len(accesses))
	}
	rewritten, err := srcrewrite.Rewrite(program.LoadedProgram, accesses,
		srcrewrite.Options{Scheme: rw.Scheme(), NoShutdown: true, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if rewritten.Inserted != 2 || len(rewritten.Skipped) != 0 {
		t.Fatalf("inserted %d, skipped %v", rewritten.Inserted, rewritten.Skipped)
	}
	var buf bytes.Buffer
	if err := rewritten.Fprint(&buf, rewritten.Files()[0]); err != nil {
		t.Fatal(err)
	}
	_, calls := parseLogCalls(t, buf.Bytes())
	if len(calls) != 2 {
		t.Fatalf("expected 2 logging calls, got %d", len(calls))
	}
	// the load is logged before the store, both through the pointer itself
	for i, tag := range []string{"0", "1"} {
		if calls[i].addr != "unsafe.Pointer(p)" || calls[i].tag != tag {
			t.Errorf("call %d: got %s, %s", i, calls[i].addr, calls[i].tag)
		}
	}
	src := buf.String()
	if strings.Contains(src, "memlog.Shutdown") {
		t.Errorf("shutdown inserted despite NoShutdown")
	}
	if !strings.Contains(src, `memlog.SetScheme("access")`) {
		t.Errorf("the scheme of the sink is not set to access:\n%s", src)
	}
}
