package qnt

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"
)

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func zlibCompress(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

// buildQNT assembles a version-0 (48-byte header) QNT file from a
// pre-planed, pre-filtered pixel plane (channel-planar 2x2-block, the
// layout decodePixelPlane expects on the wire) and an optional alpha
// plane.
func buildQNT(t *testing.T, width, height uint32, pixelPlane, alphaPlane []byte) []byte {
	pixelCompressed := zlibCompress(t, pixelPlane)
	var alphaCompressed []byte
	if alphaPlane != nil {
		alphaCompressed = zlibCompress(t, alphaPlane)
	}

	var buf bytes.Buffer
	buf.WriteString("QNT\x00")
	buf.Write(u32(0)) // version 0 -> fixed 48 byte header
	buf.Write(u32(0)) // x
	buf.Write(u32(0)) // y
	buf.Write(u32(width))
	buf.Write(u32(height))
	buf.Write(u32(24)) // bpp
	buf.Write(u32(1))  // reserved
	buf.Write(u32(uint32(len(pixelCompressed))))
	buf.Write(u32(uint32(len(alphaCompressed))))
	buf.Write(make([]byte, 8)) // pad to the fixed 48-byte v0 header
	buf.Write(pixelCompressed)
	buf.Write(alphaCompressed)
	return buf.Bytes()
}

func TestDecodeSolidRedNoAlpha(t *testing.T) {
	// The predictor removes correlation between neighboring pixels, so
	// a perfectly flat decoded channel is encoded on the wire as the
	// true value at pixel (0,0) (untouched by the predictor) and zero
	// everywhere else in the 2x2 block — not as four repeated bytes.
	// Channel order emitted is c=2,1,0 written into byte offsets 2,1,0
	// (B,G,R slots of an RGBA buffer).
	pixelPlane := []byte{
		0x00, 0x00, 0x00, 0x00, // B channel block: flat 0
		0x00, 0x00, 0x00, 0x00, // G channel block: flat 0
		0xFF, 0x00, 0x00, 0x00, // R channel block: flat 255
	}

	data := buildQNT(t, 2, 2, pixelPlane, nil)
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 2 || img.Height != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", img.Width, img.Height)
	}
	if img.HasAlpha {
		t.Fatal("HasAlpha should be false")
	}
	for i := 0; i < 4; i++ {
		px := img.Pixels[i*4 : i*4+4]
		if px[0] != 0xFF || px[1] != 0 || px[2] != 0 || px[3] != 0xFF {
			t.Fatalf("pixel %d = %v, want [255 0 0 255]", i, px)
		}
	}
}

func TestDecodeOddDimensionsPadInternally(t *testing.T) {
	// 3x3 declared; internal buffer rounds to 4x4. Build an all-zero
	// plane (solid black, alpha seeded to 0xFF and propagated).
	plane := make([]byte, 4*4*3/4*4) // not used directly; build explicitly below
	_ = plane
	pixelPlane := make([]byte, 4*4*3)
	data := buildQNT(t, 3, 3, pixelPlane, nil)

	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 3 || img.Height != 3 {
		t.Fatalf("dims = %dx%d, want 3x3 (declared size, not padded)", img.Width, img.Height)
	}
	// declared buffer is sized to the rounded-up internal W*H, per spec.
	if len(img.Pixels) != 4*4*4 {
		t.Fatalf("len(Pixels) = %d, want %d", len(img.Pixels), 4*4*4)
	}
}
