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

package srcrewrite

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/awslabs/ar-go-memtrace/analysis"
	"github.com/awslabs/ar-go-memtrace/analysis/config"
	"github.com/awslabs/ar-go-memtrace/analysis/instrument"
	"github.com/awslabs/ar-go-memtrace/analysis/tracefile"
	"github.com/awslabs/ar-go-memtrace/runtime/memlog"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/decorator/resolver/gopackages"
	"github.com/dave/dst/dstutil"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"
)

// Options are the options of Rewrite
type Options struct {
	// Scheme is set as the scheme of the runtime sink by an init function of each instrumented package. No init
	// function is added if the scheme has no name.
	Scheme tracefile.Scheme
	// NoShutdown disables the insertion of "defer memlog.Shutdown()" at the start of main.main
	NoShutdown bool
	// Logger receives the skipped accesses at debug level
	Logger *config.LogGroup
}

// Skipped is an access for which no logging statement has been inserted
type Skipped struct {
	Access   instrument.Access
	Position token.Position
	Reason   string
}

func (s Skipped) String() string {
	return fmt.Sprintf("%s: %s: %s", s.Position, s.Access.Label, s.Reason)
}

// Result is a set of rewritten packages
type Result struct {
	// Inserted is the number of logging statements inserted
	Inserted int
	// Skipped are the accesses that could not be logged from the source
	Skipped []Skipped

	fset     *token.FileSet
	packages map[*packages.Package]*pkgInfo
	files    map[string]*fileInfo
}

type pkgInfo struct {
	pkg      *packages.Package
	dec      *decorator.Decorator
	files    []*fileInfo
	modified bool
}

type fileInfo struct {
	pkg      *pkgInfo
	name     string
	ast      *ast.File
	dst      *dst.File
	parents  map[ast.Node]ast.Node
	accesses map[token.Pos]ast.Expr
	inserts  map[dst.Stmt][]dst.Stmt
}

// Rewrite inserts a call to memlog.LogMemAccess before the statement of each access of the program. The accesses
// must have been lifted from the program: their positions are used to find the expressions x[i] and *p in the
// syntax of the packages. Accesses whose address cannot be evaluated again before their statement without changing
// the behavior of the program are skipped, as well as the accesses on lines with a memtrace:ignore directive.
func Rewrite(program analysis.LoadedProgram, accesses []instrument.Access, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = config.NewLogGroup(nil)
	}
	res := &Result{
		fset:     program.Program.Fset,
		packages: map[*packages.Package]*pkgInfo{},
		files:    map[string]*fileInfo{},
	}
	byTokenFile := map[*token.File]*fileInfo{}
	for _, pkg := range program.Packages {
		pi := &pkgInfo{pkg: pkg, dec: decorator.NewDecoratorFromPackage(pkg)}
		res.packages[pkg] = pi
		for _, f := range pkg.Syntax {
			tf := res.fset.File(f.Package)
			if tf == nil {
				continue
			}
			fi := newFileInfo(pi, tf.Name(), f)
			pi.files = append(pi.files, fi)
			byTokenFile[tf] = fi
			res.files[fi.name] = fi
		}
	}

	for _, a := range accesses {
		position := res.fset.Position(a.Pos())
		skip := func(reason string) {
			res.Skipped = append(res.Skipped, Skipped{Access: a, Position: position, Reason: reason})
			opts.Logger.Debugf("not logging %s at %s: %s", a.Label, position, reason)
		}
		if !a.Pos().IsValid() {
			skip("no source position")
			continue
		}
		if program.Directives.Ignores(position) {
			skip("ignored by directive")
			continue
		}
		fi := byTokenFile[res.fset.File(a.Pos())]
		if fi == nil {
			skip("not in the syntax of the loaded packages")
			continue
		}
		if err := fi.insert(a); err != nil {
			var reason unsafeAccess
			if errors.As(err, &reason) {
				skip(string(reason))
				continue
			}
			return nil, fmt.Errorf("%s: %w", position, err)
		}
		res.Inserted++
	}

	for _, pi := range res.packages {
		if !pi.modified {
			continue
		}
		if err := pi.finish(opts); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// unsafeAccess is the reason why an access is not logged
type unsafeAccess string

func (u unsafeAccess) Error() string { return string(u) }

func newFileInfo(pi *pkgInfo, name string, f *ast.File) *fileInfo {
	fi := &fileInfo{
		pkg:      pi,
		name:     name,
		ast:      f,
		parents:  map[ast.Node]ast.Node{},
		accesses: map[token.Pos]ast.Expr{},
		inserts:  map[dst.Stmt][]dst.Stmt{},
	}
	var stack []ast.Node
	ast.Inspect(f, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		if len(stack) > 0 {
			fi.parents[n] = stack[len(stack)-1]
		}
		stack = append(stack, n)
		switch e := n.(type) {
		case *ast.IndexExpr:
			fi.accesses[e.Lbrack] = e
		case *ast.StarExpr:
			fi.accesses[e.Star] = e
		}
		return true
	})
	return fi
}

// decorated returns the dst file, decorating the file on first use
func (fi *fileInfo) decorated() (*dst.File, error) {
	if fi.dst == nil {
		f, err := fi.pkg.dec.DecorateFile(fi.ast)
		if err != nil {
			return nil, fmt.Errorf("could not decorate %s: %w", fi.name, err)
		}
		fi.dst = f
	}
	return fi.dst, nil
}

// insert records the logging statement of the access before its statement
func (fi *fileInfo) insert(a instrument.Access) error {
	expr, ok := fi.accesses[a.Pos()]
	if !ok {
		return unsafeAccess("no x[i] or *p expression at the position of the access")
	}
	stmt, err := fi.enclosingStmt(expr)
	if err != nil {
		return err
	}
	if !fi.isPure(expr) {
		return unsafeAccess("the address has side effects")
	}
	if _, err := fi.decorated(); err != nil {
		return err
	}
	dstExpr, ok1 := fi.pkg.dec.Dst.Nodes[expr].(dst.Expr)
	dstStmt, ok2 := fi.pkg.dec.Dst.Nodes[stmt].(dst.Stmt)
	if !ok1 || !ok2 {
		return fmt.Errorf("no decorated node for the access")
	}
	fi.inserts[dstStmt] = append(fi.inserts[dstStmt], newLogStmt(dstExpr, a.Tag))
	fi.pkg.modified = true
	return nil
}

// enclosingStmt returns the statement before which the address of expr can be evaluated: the closest statement in
// a statement list such that expr is evaluated exactly once, unconditionally, whenever the statement executes.
func (fi *fileInfo) enclosingStmt(expr ast.Expr) (ast.Stmt, error) {
	var child ast.Node = expr
	for {
		parent := fi.parents[child]
		if parent == nil {
			return nil, unsafeAccess("no enclosing statement")
		}
		if stmt, ok := child.(ast.Stmt); ok && inStmtList(stmt, parent) {
			return stmt, nil
		}
		switch p := parent.(type) {
		case *ast.BinaryExpr:
			if (p.Op == token.LAND || p.Op == token.LOR) && child == p.Y {
				return nil, unsafeAccess("conditionally evaluated operand")
			}
		case *ast.ForStmt:
			if child == p.Cond || child == p.Post {
				return nil, unsafeAccess("in a loop header")
			}
		case *ast.RangeStmt:
			if child == p.Key || child == p.Value {
				return nil, unsafeAccess("in a range assignment")
			}
		case *ast.IfStmt:
			if child == p.Else {
				return nil, unsafeAccess("in an else-if condition")
			}
		case *ast.CaseClause:
			return nil, unsafeAccess("in a case expression")
		case *ast.CommClause:
			return nil, unsafeAccess("in a select case")
		case *ast.LabeledStmt:
			return nil, unsafeAccess("in a labeled statement")
		case *ast.FuncLit, *ast.FuncDecl:
			return nil, unsafeAccess("no enclosing statement")
		}
		child = parent
	}
}

// inStmtList returns true if stmt is an element of a statement list of parent, before which statements can be
// inserted
func inStmtList(stmt ast.Stmt, parent ast.Node) bool {
	switch p := parent.(type) {
	case *ast.BlockStmt:
		switch stmt.(type) {
		case *ast.CaseClause, *ast.CommClause:
			return false
		}
		return true
	case *ast.CaseClause:
		return slices.Contains(p.Body, stmt)
	case *ast.CommClause:
		return slices.Contains(p.Body, stmt)
	}
	return false
}

// isPure returns true if evaluating the address of expr a second time has no effect: its operands contain no
// function calls other than conversions and len or cap, and no channel receive.
func (fi *fileInfo) isPure(expr ast.Expr) bool {
	info := fi.pkg.pkg.TypesInfo
	pure := true
	ast.Inspect(expr, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			pure = false
		case *ast.UnaryExpr:
			if n.Op == token.ARROW {
				pure = false
			}
		case *ast.CallExpr:
			if tv, ok := info.Types[n.Fun]; ok && tv.IsType() {
				return true
			}
			if id, ok := unparen(n.Fun).(*ast.Ident); ok {
				if b, ok := info.Uses[id].(*types.Builtin); ok && (b.Name() == "len" || b.Name() == "cap") {
					return true
				}
			}
			pure = false
		}
		return pure
	})
	return pure
}

// newLogStmt returns the statement memlog.LogMemAccess(unsafe.Pointer(&x[i]), tag) for x[i], and
// memlog.LogMemAccess(unsafe.Pointer(p), tag) for *p
func newLogStmt(access dst.Expr, tag tracefile.Tag) dst.Stmt {
	var addr dst.Expr
	if star, ok := access.(*dst.StarExpr); ok {
		addr = cloneExpr(star.X)
	} else {
		addr = &dst.UnaryExpr{Op: token.AND, X: cloneExpr(access)}
	}
	call := &dst.CallExpr{
		Fun: &dst.Ident{Name: "LogMemAccess", Path: memlog.ImportPath},
		Args: []dst.Expr{
			&dst.CallExpr{Fun: &dst.Ident{Name: "Pointer", Path: "unsafe"}, Args: []dst.Expr{addr}},
			&dst.BasicLit{Kind: token.INT, Value: strconv.Itoa(int(tag))},
		},
	}
	stmt := &dst.ExprStmt{X: call}
	stmt.Decs.Before = dst.NewLine
	stmt.Decs.After = dst.NewLine
	return stmt
}

// cloneExpr returns a copy of e without comments
func cloneExpr(e dst.Expr) dst.Expr {
	c := dst.Clone(e).(dst.Expr)
	dst.Inspect(c, func(n dst.Node) bool {
		if n != nil {
			*n.Decorations() = dst.NodeDecs{}
		}
		return true
	})
	return c
}

// finish applies the insertions of the files of the package and adds the initialization of the sink
func (pi *pkgInfo) finish(opts Options) error {
	var first *fileInfo
	for _, fi := range pi.files {
		if len(fi.inserts) == 0 {
			continue
		}
		if first == nil {
			first = fi
		}
		dstutil.Apply(fi.dst, func(c *dstutil.Cursor) bool {
			stmt, ok := c.Node().(dst.Stmt)
			if !ok || c.Index() < 0 {
				return true
			}
			for _, s := range fi.inserts[stmt] {
				c.InsertBefore(s)
			}
			return true
		}, nil)
	}
	if first != nil && opts.Scheme.Name != "" {
		first.dst.Decls = append(first.dst.Decls, newSchemeInit(opts.Scheme))
	}
	if pi.pkg.Name != "main" || opts.NoShutdown {
		return nil
	}
	for _, fi := range pi.files {
		for _, decl := range fi.ast.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil || fd.Name.Name != "main" || fd.Body == nil {
				continue
			}
			if _, err := fi.decorated(); err != nil {
				return err
			}
			main := pi.dec.Dst.Nodes[fd].(*dst.FuncDecl)
			if len(main.Body.List) > 0 && isShutdown(main.Body.List[0]) {
				return nil
			}
			main.Body.List = append([]dst.Stmt{newShutdownStmt()}, main.Body.List...)
			return nil
		}
	}
	return nil
}

// newSchemeInit returns the function init() { memlog.SetScheme("name") }
func newSchemeInit(scheme tracefile.Scheme) dst.Decl {
	call := &dst.CallExpr{
		Fun:  &dst.Ident{Name: "SetScheme", Path: memlog.ImportPath},
		Args: []dst.Expr{&dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(scheme.Name)}},
	}
	fd := &dst.FuncDecl{
		Name: dst.NewIdent("init"),
		Type: &dst.FuncType{Func: true, Params: &dst.FieldList{}},
		Body: &dst.BlockStmt{List: []dst.Stmt{&dst.ExprStmt{X: call}}},
	}
	fd.Decs.Before = dst.EmptyLine
	fd.Decs.Start.Append("// memtrace: labels of the logged accesses")
	return fd
}

// newShutdownStmt returns the statement defer memlog.Shutdown()
func newShutdownStmt() dst.Stmt {
	stmt := &dst.DeferStmt{Call: &dst.CallExpr{Fun: &dst.Ident{Name: "Shutdown", Path: memlog.ImportPath}}}
	stmt.Decs.Before = dst.NewLine
	stmt.Decs.After = dst.NewLine
	return stmt
}

func isShutdown(stmt dst.Stmt) bool {
	d, ok := stmt.(*dst.DeferStmt)
	if !ok {
		return false
	}
	id, ok := d.Call.Fun.(*dst.Ident)
	return ok && id.Path == memlog.ImportPath && id.Name == "Shutdown"
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

// Files returns the names of the files modified by the rewrite, sorted
func (r *Result) Files() []string {
	var res []string
	for _, pi := range r.packages {
		if !pi.modified {
			continue
		}
		for _, fi := range pi.files {
			if fi.dst != nil {
				res = append(res, fi.name)
			}
		}
	}
	slices.Sort(res)
	return res
}

// Fprint prints the rewritten source of the file
func (r *Result) Fprint(w io.Writer, filename string) error {
	fi, ok := r.files[filename]
	if !ok {
		return fmt.Errorf("%s is not a file of the rewritten packages", filename)
	}
	f, err := fi.decorated()
	if err != nil {
		return err
	}
	restorer := decorator.NewRestorerWithImports(fi.pkg.pkg.PkgPath,
		gopackages.WithHints(filepath.Dir(filename), map[string]string{
			memlog.ImportPath: "memlog",
			"unsafe":          "unsafe",
		}))
	return restorer.Fprint(w, f)
}

// WriteFiles writes all the files of the modified packages in outDir, at their path relative to root. Files
// outside root are written directly in outDir. It returns the names of the written files.
func (r *Result) WriteFiles(root string, outDir string) ([]string, error) {
	var names []string
	for _, pi := range r.packages {
		if pi.modified {
			for _, fi := range pi.files {
				names = append(names, fi.name)
			}
		}
	}
	slices.Sort(names)
	var written []string
	for _, name := range names {
		rel, err := filepath.Rel(root, name)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(name)
		}
		target := filepath.Join(outDir, rel)
		var buf bytes.Buffer
		if err := r.Fprint(&buf, name); err != nil {
			return written, fmt.Errorf("could not print %s: %w", name, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

// SkipReasons counts the skipped accesses by reason
func (r *Result) SkipReasons() map[string]int {
	res := map[string]int{}
	for _, s := range r.Skipped {
		res[s.Reason]++
	}
	return res
}
