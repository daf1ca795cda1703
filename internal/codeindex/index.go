// Package codeindex indexes a local Go source tree and answers symbol search and call-graph
// queries against it.
package codeindex

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

const provenance = "codeindex"

type funcInfo struct {
	name  string
	file  string
	line  int
	calls []string
}

// Index holds every function and method declared under a root directory, keyed by
// "Type.Method" or "Func".
type Index struct {
	root   string
	repo   string
	funcs  map[string]*funcInfo
	typed  bool
	logger *slog.Logger
}

// New walks cfg.Root and builds the index. With cfg.Types set, call targets are resolved through
// go/packages type information; if loading fails the syntactic walker is used instead.
func New(cfg config.CodeIndexConfig, logger *slog.Logger) (*Index, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("codeindex: root is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("codeindex: %w", err)
	}
	repo := cfg.Repo
	if repo == "" {
		repo = filepath.Base(root)
	}
	idx := &Index{
		root:   root,
		repo:   repo,
		funcs:  make(map[string]*funcInfo),
		logger: logger.With("component", "codeindex", "root", root),
	}
	if cfg.Types {
		if err := idx.loadTyped(); err != nil {
			idx.logger.Warn("typed load failed, falling back to syntax", "error", err)
			idx.funcs = make(map[string]*funcInfo)
		} else {
			idx.typed = true
		}
	}
	if !idx.typed {
		if err := idx.loadSyntax(); err != nil {
			return nil, err
		}
	}
	idx.logger.Info("code index ready", "functions", len(idx.funcs), "typed", idx.typed)
	return idx, nil
}

// Name is the provenance tag attached to results.
func (x *Index) Name() string { return provenance }

// Len reports the number of indexed functions.
func (x *Index) Len() int { return len(x.funcs) }

// SearchCode ranks declarations against symbol: exact names first, then method-name matches,
// then case-insensitive substring matches.
func (x *Index) SearchCode(ctx context.Context, symbol string, limit int) ([]models.CodeLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	lower := strings.ToLower(symbol)
	var out []models.CodeLocation
	for name, fn := range x.funcs {
		var score float64
		switch {
		case name == symbol:
			score = 1
		case strings.HasSuffix(name, "."+symbol) || strings.HasSuffix(symbol, "."+name):
			score = 0.7
		case strings.Contains(strings.ToLower(name), lower):
			score = 0.4
		default:
			continue
		}
		out = append(out, models.CodeLocation{
			Repo:       x.repo,
			File:       fn.file,
			Symbol:     name,
			Line:       fn.line,
			Score:      score,
			Provenance: provenance,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CallGraph expands calls breadth-first from symbol up to depth hops. Unknown symbols yield an
// empty graph.
func (x *Index) CallGraph(ctx context.Context, symbol string, depth int) (*models.CallGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := &models.CallGraph{Root: symbol, Depth: depth}
	if _, ok := x.funcs[symbol]; !ok || depth <= 0 {
		return g, nil
	}
	visited := map[string]bool{symbol: true}
	frontier := []string{symbol}
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []string
		for _, from := range frontier {
			fn := x.funcs[from]
			if fn == nil {
				continue
			}
			for _, to := range fn.calls {
				g.Edges = append(g.Edges, models.CallEdge{From: from, To: to, Depth: hop})
				if !visited[to] {
					visited[to] = true
					next = append(next, to)
				}
			}
		}
		frontier = next
	}
	return g, nil
}

func (x *Index) rel(path string) string {
	if r, err := filepath.Rel(x.root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return filepath.ToSlash(path)
}

func (x *Index) loadTyped() error {
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir:  x.root,
		Fset: fset,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("no packages found")
	}
	var loaded int
	for _, pkg := range pkgs {
		if pkg.TypesInfo == nil {
			continue
		}
		loaded++
		for _, file := range pkg.Syntax {
			x.addFile(fset, file, func(call *ast.CallExpr) string {
				return typedCallee(pkg.TypesInfo, call)
			})
		}
	}
	if loaded == 0 {
		return fmt.Errorf("no type information")
	}
	return nil
}

func (x *Index) loadSyntax() error {
	fset := token.NewFileSet()
	var files []*ast.File
	err := filepath.WalkDir(x.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != x.root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
		if err != nil {
			x.logger.Debug("skipping unparseable file", "file", path, "error", err)
			return nil
		}
		files = append(files, file)
		return nil
	})
	if err != nil {
		return fmt.Errorf("codeindex: walk %s: %w", x.root, err)
	}

	receivers := make(map[string]bool)
	methods := make(map[string][]string)
	for _, f := range files {
		for _, decl := range f.Decls {
			if fd, ok := decl.(*ast.FuncDecl); ok {
				if recv := receiverName(fd); recv != "" {
					receivers[recv] = true
					methods[fd.Name.Name] = append(methods[fd.Name.Name], recv+"."+fd.Name.Name)
				}
			}
		}
	}
	for _, f := range files {
		x.addFile(fset, f, func(call *ast.CallExpr) string {
			return syntacticCallee(call, receivers, methods)
		})
	}
	// Without type information, calls outside the tree cannot be named reliably.
	for _, fn := range x.funcs {
		kept := fn.calls[:0]
		for _, c := range fn.calls {
			if _, ok := x.funcs[c]; ok {
				kept = append(kept, c)
			}
		}
		fn.calls = kept
	}
	return nil
}

func (x *Index) addFile(fset *token.FileSet, file *ast.File, callee func(*ast.CallExpr) string) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		name := fd.Name.Name
		if recv := receiverName(fd); recv != "" {
			name = recv + "." + name
		}
		pos := fset.Position(fd.Pos())
		info := &funcInfo{name: name, file: x.rel(pos.Filename), line: pos.Line}
		seen := make(map[string]bool)
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if target := callee(call); target != "" && target != name && !seen[target] {
				seen[target] = true
				info.calls = append(info.calls, target)
			}
			return true
		})
		x.funcs[name] = info
	}
}

// receiverName strips pointers and type parameters from a method receiver.
func receiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	expr := fd.Recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

func typedCallee(info *types.Info, call *ast.CallExpr) string {
	var ident *ast.Ident
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		ident = fun
	case *ast.SelectorExpr:
		ident = fun.Sel
	default:
		return ""
	}
	fn, ok := info.Uses[ident].(*types.Func)
	if !ok {
		return ""
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return fn.Name()
	}
	recv := sig.Recv().Type()
	if p, ok := recv.(*types.Pointer); ok {
		recv = p.Elem()
	}
	if named, ok := recv.(*types.Named); ok {
		return named.Obj().Name() + "." + fn.Name()
	}
	return fn.Name()
}

// syntacticCallee resolves T.M(...) and x.M(...) where M is a method on exactly one known type.
func syntacticCallee(call *ast.CallExpr, known map[string]bool, methods map[string][]string) string {
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		return fun.Name
	case *ast.SelectorExpr:
		if id, ok := fun.X.(*ast.Ident); ok && known[id.Name] {
			return id.Name + "." + fun.Sel.Name
		}
		if owners := methods[fun.Sel.Name]; len(owners) == 1 {
			return owners[0]
		}
		if id, ok := fun.X.(*ast.Ident); ok {
			return id.Name + "." + fun.Sel.Name
		}
		return fun.Sel.Name
	}
	return ""
}
