// Package txloop detects transactions opened once per loop iteration.
package txloop

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer detects RunInTx calls made directly inside a loop body. Each call
// commits on its own, so a failure halfway leaves earlier iterations applied.
var Analyzer = &analysis.Analyzer{
	Name:     "txloop",
	Doc:      "detects RunInTx calls inside loops that should share one transaction",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// txMethods are method names that open a transaction.
var txMethods = map[string]bool{
	"RunInTx": true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.RangeStmt)(nil),
		(*ast.ForStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		var body *ast.BlockStmt
		switch stmt := n.(type) {
		case *ast.RangeStmt:
			body = stmt.Body
		case *ast.ForStmt:
			body = stmt.Body
		}
		if body == nil {
			return
		}

		ast.Inspect(body, func(n ast.Node) bool {
			switch node := n.(type) {
			case *ast.FuncLit:
				// Closures started per iteration (goroutines, errgroup tasks)
				// are independent units of work.
				return false
			case *ast.CallExpr:
				sel, ok := node.Fun.(*ast.SelectorExpr)
				if ok && txMethods[sel.Sel.Name] {
					pass.Reportf(node.Pos(),
						"%s called inside loop - each iteration commits separately",
						sel.Sel.Name)
				}
			}
			return true
		})
	})

	return nil, nil
}
