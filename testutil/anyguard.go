package testutil

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// AnyUse is one use of the any type in a declaration.
type AnyUse struct {
	File   string
	Line   int
	Symbol string
}

func (u AnyUse) String() string {
	return fmt.Sprintf("%s:%d (%s)", u.File, u.Line, u.Symbol)
}

// AssertAnyConfined fails when a non-test file in dir uses any as a type
// outside the allowed top-level symbols. Methods count as their receiver type;
// type parameter constraints are ignored.
func AssertAnyConfined(t testing.TB, dir string, allowed ...string) {
	t.Helper()
	uses, err := AnyUses(dir)
	if err != nil {
		t.Fatalf("scan any usage: %v", err)
	}
	ok := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		ok[s] = struct{}{}
	}
	var viols []string
	for _, u := range uses {
		if _, fine := ok[u.Symbol]; !fine {
			viols = append(viols, u.String())
		}
	}
	if len(viols) > 0 {
		t.Fatalf("any used outside the JSON boundary; use a concrete type:\n%s", strings.Join(viols, "\n"))
	}
}

// AnyUses lists every any type expression in the non-test files of dir.
func AnyUses(dir string) ([]AnyUse, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var out []AnyUse
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, 0)
		if err != nil {
			return nil, err
		}
		constraints := typeParamSpans(file)
		symbols := declSpans(file)
		for _, pos := range anyIdents(file) {
			if within(pos, constraints) {
				continue
			}
			out = append(out, AnyUse{File: name, Line: fset.Position(pos).Line, Symbol: symbolAt(symbols, pos)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

type span struct {
	name       string
	start, end token.Pos
}

func within(pos token.Pos, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos <= s.end {
			return true
		}
	}
	return false
}

func symbolAt(spans []span, pos token.Pos) string {
	for _, s := range spans {
		if pos >= s.start && pos <= s.end {
			return s.name
		}
	}
	return ""
}

func typeParamSpans(file *ast.File) []span {
	var out []span
	add := func(fields *ast.FieldList) {
		if fields == nil {
			return
		}
		for _, f := range fields.List {
			out = append(out, span{start: f.Type.Pos(), end: f.Type.End()})
		}
	}
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncType:
			add(node.TypeParams)
		case *ast.TypeSpec:
			add(node.TypeParams)
		}
		return true
	})
	return out
}

func declSpans(file *ast.File) []span {
	var out []span
	for _, decl := range file.Decls {
		switch node := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range node.Specs {
				switch spec := spec.(type) {
				case *ast.TypeSpec:
					out = append(out, span{name: spec.Name.Name, start: spec.Pos(), end: spec.End()})
				case *ast.ValueSpec:
					for _, name := range spec.Names {
						out = append(out, span{name: name.Name, start: spec.Pos(), end: spec.End()})
					}
				}
			}
		case *ast.FuncDecl:
			name := node.Name.Name
			if node.Recv != nil && len(node.Recv.List) > 0 {
				if recv := recvTypeName(node.Recv.List[0].Type); recv != "" {
					name = recv
				}
			}
			out = append(out, span{name: name, start: node.Pos(), end: node.End()})
		}
	}
	return out
}

func recvTypeName(expr ast.Expr) string {
	switch node := expr.(type) {
	case *ast.Ident:
		return node.Name
	case *ast.StarExpr:
		return recvTypeName(node.X)
	case *ast.IndexExpr:
		return recvTypeName(node.X)
	case *ast.IndexListExpr:
		return recvTypeName(node.X)
	}
	return ""
}

// anyIdents returns the positions of any identifiers used in type position.
func anyIdents(file *ast.File) []token.Pos {
	var out []token.Pos
	var stack []ast.Node
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		stack = append(stack, n)
		if ident, ok := n.(*ast.Ident); ok && ident.Name == "any" && len(stack) > 1 && typePosition(stack[len(stack)-2], ident) {
			out = append(out, ident.Pos())
		}
		return true
	})
	return out
}

func typePosition(parent ast.Node, child ast.Expr) bool {
	switch node := parent.(type) {
	case *ast.ArrayType:
		return node.Elt == child
	case *ast.MapType:
		return node.Key == child || node.Value == child
	case *ast.ChanType:
		return node.Value == child
	case *ast.StarExpr:
		return node.X == child
	case *ast.Ellipsis:
		return node.Elt == child
	case *ast.Field:
		return node.Type == child
	case *ast.ValueSpec:
		return node.Type == child
	case *ast.TypeSpec:
		return node.Type == child
	case *ast.TypeAssertExpr:
		return node.Type == child
	case *ast.IndexExpr:
		return node.Index == child
	case *ast.IndexListExpr:
		for _, idx := range node.Indices {
			if idx == child {
				return true
			}
		}
	case *ast.CallExpr:
		return node.Fun == child
	}
	return false
}
