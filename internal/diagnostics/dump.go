// Package diagnostics provides a stable textual dump of decoded IR
// trees for debugging and test fixtures, using go-spew for
// deterministic, human-readable output instead of a hand-rolled
// formatter.
package diagnostics

import (
	"github.com/davecgh/go-spew/spew"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders v as a deterministic, human-readable tree. Intended for
// the CLI's dump output and for golden-style test assertions where byte-exact
// JSON would be too brittle to hand-author.
func Dump(v interface{}) string {
	return dumper.Sdump(v)
}
