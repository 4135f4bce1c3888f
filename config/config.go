// Package config holds the handful of module-wide constants and
// switches the decoders share: the coordinate convention applied at
// parse time and the text encoding used to decode OPR side-channel
// files. It centralizes a single process-wide encoding.Encoding behind
// SetTextEncoding/GetTextEncoding instead of threading an encoding
// parameter through every caller.
package config

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// InchesToMeters is the scale applied to POL/MOT position fields: the
// source engine stores positions in inches, this module's scene graph
// is in meters.
const InchesToMeters = 0.0254

var textEncoding encoding.Encoding = japanese.ShiftJIS

// SetTextEncoding overrides the encoding used to decode OPR overlay
// text. Defaults to Shift-JIS, the encoding the original tooling's
// text side-channels were authored in.
func SetTextEncoding(enc encoding.Encoding) {
	textEncoding = enc
}

// GetTextEncoding returns the encoding currently used to decode OPR
// overlay text.
func GetTextEncoding() encoding.Encoding {
	return textEncoding
}
