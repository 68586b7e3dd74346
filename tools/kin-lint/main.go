// kin-lint is a custom static analyzer for kin-core transaction and error handling patterns.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/kin-core/tools/kin-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
