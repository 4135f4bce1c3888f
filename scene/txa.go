package scene

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TxaTable is a texture-animation frame index table: one integer per
// line, each naming which entry of a material's color-frame set to
// show on a given tick (spec.md §10 supplemented feature). Grounded on
// opr.Decode's line-oriented scanner, simplified to bare integers since
// a txa file carries no keys.
type TxaTable struct {
	Indices []int
}

// ParseTxaTable reads a plain-text file of one integer per line.
// Blank lines and lines starting with "#" are skipped. Negative values
// are accepted here; ApplyMotion treats them as out of range.
func ParseTxaTable(data []byte) (*TxaTable, error) {
	t := &TxaTable{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, errors.Wrapf(err, "scene: txa line %d %q", lineNo, line)
		}
		t.Indices = append(t.Indices, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scene: txa scan")
	}
	return t, nil
}
