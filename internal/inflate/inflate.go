// Package inflate wraps compress/zlib for the single contract every
// decoder in this module needs: decompress a blob to an exact expected
// size. There is no streaming requirement here — every payload is a
// single in-memory file, so a buffered round trip through
// zlib.NewReader is sufficient.
package inflate

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/internal/ferr"
)

// Inflate decompresses a zlib-framed blob and requires the result to be
// exactly expectedSize bytes. Any other outcome — corrupt stream, short
// or long output — is reported as an *ferr.Error rather than silently
// truncating or zero-padding.
func Inflate(compressed []byte, expectedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.Wrap(ferr.New(ferr.DecompressFailed, "zlib header: %v", err), "inflate")
	}
	defer r.Close()

	out := make([]byte, expectedSize)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrap(ferr.New(ferr.DecompressFailed, "%v", err), "inflate")
	}
	if n != expectedSize {
		return nil, ferr.New(ferr.SizeMismatch, "inflated %d bytes, expected %d", n, expectedSize)
	}

	// Confirm there isn't more data than expected waiting behind it.
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m > 0 {
		return nil, ferr.New(ferr.SizeMismatch, "inflated output exceeds expected %d bytes", expectedSize)
	}

	return out, nil
}
