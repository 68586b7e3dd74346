// Package sentinelcmp detects sentinel errors compared with == or !=.
package sentinelcmp

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports err == ErrX comparisons. Errors are wrapped with %w on
// their way up, so only errors.Is sees the sentinel.
var Analyzer = &analysis.Analyzer{
	Name:     "sentinelcmp",
	Doc:      "detects sentinel errors compared with == or != instead of errors.Is",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.BinaryExpr)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		expr := n.(*ast.BinaryExpr)
		if expr.Op != token.EQL && expr.Op != token.NEQ {
			return
		}

		for _, side := range []ast.Expr{expr.X, expr.Y} {
			name, ok := sentinelName(pass, side)
			if !ok {
				continue
			}
			pass.Reportf(expr.Pos(), "comparison with %s - use errors.Is", name)
			return
		}
	})

	return nil, nil
}

// sentinelName reports whether e is a package-level error variable named Err*.
func sentinelName(pass *analysis.Pass, e ast.Expr) (string, bool) {
	var ident *ast.Ident
	switch x := e.(type) {
	case *ast.Ident:
		ident = x
	case *ast.SelectorExpr:
		ident = x.Sel
	default:
		return "", false
	}

	if !strings.HasPrefix(ident.Name, "Err") {
		return "", false
	}

	v, ok := pass.TypesInfo.Uses[ident].(*types.Var)
	if !ok || v.Pkg() == nil || v.Parent() != v.Pkg().Scope() {
		return "", false
	}

	errType := types.Universe.Lookup("error").Type()
	if !types.Identical(v.Type(), errType) {
		return "", false
	}

	return ident.Name, true
}
