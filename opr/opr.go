// Package opr parses OPR overlay files: a small line-oriented,
// Shift-JIS encoded text side-channel keyed by "Mesh = ..." headers
// that annotates meshes with rendering hints (blend mode, edge
// outlining, UV scroll). Parsing is a simple line/key=value scan,
// scoped to whichever header it falls under.
package opr

import (
	"bufio"
	"bytes"
	"log"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/yuzusoft/scenekit/config"
)

// MeshOverlay holds every recognized OPR attribute for one mesh or
// mesh-part name.
type MeshOverlay struct {
	AdditiveBlending bool
	NoEdge           bool
	EdgeColor        []float64
	EdgeSize         float32
	HasUVScroll      bool
	UVScroll         mgl32.Vec2
}

// Overlay is the full parsed side-channel, keyed by mesh (or mesh-part)
// name.
type Overlay struct {
	Meshes map[string]*MeshOverlay
}

// Decode reads a Shift-JIS encoded OPR text blob and returns its
// per-mesh overlay table. Unknown keys are logged, not rejected; lines
// before any "Mesh"/"MeshPart" header are ignored, matching spec.md §4.6.
func Decode(data []byte) (*Overlay, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // strip UTF-8 BOM if present
	text, err := config.GetTextEncoding().NewDecoder().Bytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "opr: decoding text")
	}

	o := &Overlay{Meshes: make(map[string]*MeshOverlay)}
	var current *MeshOverlay

	scanner := bufio.NewScanner(bytes.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}

		switch key {
		case "Mesh", "MeshPart":
			name := unquote(value)
			current = &MeshOverlay{}
			o.Meshes[name] = current
			continue
		}

		if current == nil {
			continue // value before any header: ignored
		}

		switch key {
		case "BlendMode":
			current.AdditiveBlending = strings.EqualFold(unquote(value), "Add")
		case "Edge":
			if unquote(value) == "0" {
				current.NoEdge = true
			}
		case "EdgeColor":
			current.EdgeColor = parseFloatList(value)
		case "EdgeSize":
			if f, err := strconv.ParseFloat(unquote(value), 32); err == nil {
				current.EdgeSize = float32(f)
			} else {
				log.Printf("opr: bad EdgeSize %q", value)
			}
		case "UVScroll":
			vals := parseFloatList(value)
			if len(vals) == 2 {
				current.HasUVScroll = true
				current.UVScroll = mgl32.Vec2{float32(vals[0]), float32(vals[1])}
			} else {
				log.Printf("opr: bad UVScroll %q", value)
			}
		default:
			log.Printf("opr: unknown key %q (value %q)", key, value)
		}
	}

	return o, nil
}

func splitKeyValue(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, `"`)
}

// parseFloatList parses a "(a, b, c)" or "a, b, c" comma-separated list.
func parseFloatList(s string) []float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
