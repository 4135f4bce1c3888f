package inflate

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/yuzusoft/scenekit/internal/ferr"
)

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

func TestInflateRoundTrip(t *testing.T) {
	want := []byte("hello, this is the payload")
	compressed := zlibCompress(t, want)

	got, err := Inflate(compressed, len(want))
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Inflate = %q, want %q", got, want)
	}
}

func TestInflateSizeMismatch(t *testing.T) {
	compressed := zlibCompress(t, []byte("hello"))

	_, err := Inflate(compressed, 4)
	if err == nil {
		t.Fatal("expected SizeMismatch error, got nil")
	}
	var fe *ferr.Error
	if !asFerr(err, &fe) {
		t.Fatalf("error %v is not a *ferr.Error", err)
	}
	if fe.Kind != ferr.SizeMismatch && fe.Kind != ferr.DecompressFailed {
		t.Fatalf("got kind %v, want SizeMismatch or DecompressFailed", fe.Kind)
	}
}

// asFerr unwraps a pkg/errors-wrapped error looking for a *ferr.Error,
// mirroring errors.As without importing the stdlib errors package twice.
func asFerr(err error, target **ferr.Error) bool {
	type causer interface{ Cause() error }
	for err != nil {
		if fe, ok := err.(*ferr.Error); ok {
			*target = fe
			return true
		}
		c, ok := err.(causer)
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}
