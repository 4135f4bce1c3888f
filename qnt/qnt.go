// Package qnt decodes the QNT image format: a channel-planar,
// 2x2-block interleaved, zlib-compressed RGB plane plus an optional
// zlib-compressed alpha plane, reconstructed through a left/up/average
// predictor. Ported byte-for-byte from the reference decoder
// (qnt_extract/extract_pixels/extract_alpha/unfilter in the retrieved
// C source) in the style of the teacher's own texture decoders
// (pack/wad/txr/ps2.go, ps3.go), which likewise separate "parse header"
// from "reconstruct planes" from "apply a pixel transform in place".
package qnt

import (
	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/internal/cursor"
	"github.com/yuzusoft/scenekit/internal/ferr"
	"github.com/yuzusoft/scenekit/internal/inflate"
)

// Image is a decoded QNT picture: RGBA8, row-major, top-left origin.
// Width and Height are the declared dimensions; Pixels keeps the
// reconstruction buffer, whose width and height are rounded up to even,
// so for odd dimensions each row is (Width+1)&^1 pixels long.
type Image struct {
	Width, Height int
	Pixels        []byte // len == ((Width+1)&^1)*((Height+1)&^1)*4
	HasAlpha      bool
}

const minHeaderSize = 48

// Decode parses a QNT header and reconstructs its pixel (and optional
// alpha) plane into an RGBA8 Image that reports the header's declared
// width/height over the even-rounded pixel buffer.
func Decode(data []byte) (*Image, error) {
	c := cursor.New(data)

	magic, err := c.FourCC()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: magic")
	}
	if magic != "QNT\x00" {
		return nil, ferr.New(ferr.BadMagic, "qnt: got %q", magic)
	}

	version, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: version")
	}
	if version != 0 && version != 1 {
		return nil, ferr.New(ferr.UnsupportedVersion, "qnt: version %d", version)
	}

	headerSize := minHeaderSize
	if version >= 1 {
		hs, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrap(err, "qnt: header_size")
		}
		headerSize = int(hs)
	}

	if _, err := c.U32LE(); err != nil { // x
		return nil, errors.Wrap(err, "qnt: x")
	}
	if _, err := c.U32LE(); err != nil { // y
		return nil, errors.Wrap(err, "qnt: y")
	}
	width32, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: width")
	}
	height32, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: height")
	}
	bpp, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: bpp")
	}
	if bpp != 24 {
		return nil, ferr.New(ferr.UnsupportedVersion, "qnt: bpp %d, only 24 supported", bpp)
	}
	if _, err := c.U32LE(); err != nil { // reserved, expected 1, meaning unknown (spec.md §9 open question)
		return nil, errors.Wrap(err, "qnt: reserved")
	}
	pixelCompressedSize, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: pixel_compressed_size")
	}
	alphaCompressedSize, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "qnt: alpha_compressed_size")
	}

	width, height := int(width32), int(height32)

	// Round up to even for the intermediate reconstruction buffer.
	w := (width + 1) &^ 1
	h := (height + 1) &^ 1

	if headerSize < 0 || headerSize > len(data) {
		return nil, ferr.New(ferr.Truncated, "qnt: header_size %d exceeds file", headerSize)
	}
	body := data[headerSize:]

	pixelStart := 0
	pixelEnd := pixelStart + int(pixelCompressedSize)
	if pixelEnd > len(body) {
		return nil, ferr.New(ferr.Truncated, "qnt: pixel plane exceeds file")
	}
	pixels, err := decodePixelPlane(body[pixelStart:pixelEnd], w, h)
	if err != nil {
		return nil, errors.Wrap(err, "qnt: pixel plane")
	}

	hasAlpha := alphaCompressedSize > 0
	if hasAlpha {
		alphaStart := pixelEnd
		alphaEnd := alphaStart + int(alphaCompressedSize)
		if alphaEnd > len(body) {
			return nil, ferr.New(ferr.Truncated, "qnt: alpha plane exceeds file")
		}
		if err := decodeAlphaPlane(body[alphaStart:alphaEnd], w, h, pixels); err != nil {
			return nil, errors.Wrap(err, "qnt: alpha plane")
		}
	} else {
		// unfilter() propagates this single seed byte across the whole image.
		pixels[3] = 0xff
	}

	unfilter(pixels, w, h)

	return &Image{
		Width:    width,
		Height:   height,
		Pixels:   pixels,
		HasAlpha: hasAlpha,
	}, nil
}

// decodePixelPlane inflates the channel-planar, 2x2-block interleaved
// RGB blob and reassembles it into an RGBA8 buffer sized w*h (alpha
// bytes left zero). Channel order is emitted c = 2,1,0 into byte offset
// c of each RGBA pixel (see spec.md §4.3 note: this is observed
// behavior, not re-mapped).
func decodePixelPlane(compressed []byte, w, h int) ([]byte, error) {
	raw, err := inflate.Inflate(compressed, w*h*3)
	if err != nil {
		return nil, err
	}

	pixels := make([]byte, w*h*4)
	p := 0
	for c := 2; c >= 0; c-- {
		for y := 0; y < h; y += 2 {
			row1 := y * w * 4
			row2 := row1 + w*4
			for x := 0; x < w; x += 2 {
				pixels[row1+x*4+c] = raw[p]
				p++
				pixels[row2+x*4+c] = raw[p]
				p++
				pixels[row1+(x+1)*4+c] = raw[p]
				p++
				pixels[row2+(x+1)*4+c] = raw[p]
				p++
			}
		}
	}
	return pixels, nil
}

// decodeAlphaPlane inflates the w*h alpha byte plane and copies it into
// the A channel of every pixel, in place.
func decodeAlphaPlane(compressed []byte, w, h int, pixels []byte) error {
	raw, err := inflate.Inflate(compressed, w*h)
	if err != nil {
		return err
	}
	for i := 0; i < w*h; i++ {
		pixels[i*4+3] = raw[i]
	}
	return nil
}

// unfilter reverses the left/up/average-of-up-and-left predictor in
// place, scanning all four channels uniformly. All arithmetic is
// unsigned 8-bit (wraps on subtraction).
func unfilter(pixels []byte, w, h int) {
	stride := w * 4

	for x := 1; x < w; x++ {
		for c := 0; c < 4; c++ {
			i := x*4 + c
			pixels[i] = pixels[i-4] - pixels[i]
		}
	}

	for y := 1; y < h; y++ {
		row := y * stride
		prev := row - stride

		for c := 0; c < 4; c++ {
			pixels[row+c] = pixels[prev+c] - pixels[row+c]
		}

		for x := 1; x < w; x++ {
			for c := 0; c < 4; c++ {
				up := int(pixels[prev+x*4+c])
				left := int(pixels[row+(x-1)*4+c])
				pixels[row+x*4+c] = byte((up+left)>>1) - pixels[row+x*4+c]
			}
		}
	}
}
