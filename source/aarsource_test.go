package source

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"testing"

	"github.com/yuzusoft/scenekit/aar"
)

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func i32(v int32) []byte { return u32(uint32(v)) }

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

// oneByOneQNT builds the smallest valid QNT file: a solid-black 1x1
// image with no alpha plane, mirroring qnt_test.go's buildQNT helper.
func oneByOneQNT(t *testing.T) []byte {
	pixelPlane := make([]byte, 2*2*3) // rounded up to an even 2x2 block
	pixelCompressed := zlibCompress(t, pixelPlane)

	var buf bytes.Buffer
	buf.WriteString("QNT\x00")
	buf.Write(u32(0)) // version 0
	buf.Write(u32(0)) // x
	buf.Write(u32(0)) // y
	buf.Write(u32(1)) // width
	buf.Write(u32(1)) // height
	buf.Write(u32(24))
	buf.Write(u32(1))
	buf.Write(u32(uint32(len(pixelCompressed))))
	buf.Write(u32(0))          // no alpha
	buf.Write(make([]byte, 8)) // pad to the fixed 48-byte v0 header
	buf.Write(pixelCompressed)
	return buf.Bytes()
}

// buildArchive assembles a raw-entry (uncompressed) v0 AAR containing
// one file per (name, data) pair, mirroring aar_test.go's index layout.
func buildArchive(t *testing.T, files map[string][]byte) *aar.Archive {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}

	const headerSize = 16
	indexEntrySize := func(name string) int { return 4 + 4 + 4 + len(name) + 1 }

	indexSize := 0
	for _, n := range names {
		indexSize += indexEntrySize(n)
	}
	firstEntryOffset := uint32(headerSize + indexSize)

	var idx bytes.Buffer
	var bodies bytes.Buffer
	offset := firstEntryOffset
	for _, n := range names {
		data := files[n]
		idx.Write(u32(offset))
		idx.Write(u32(uint32(len(data))))
		idx.Write(i32(int32(aar.KindRaw)))
		idx.WriteString(n)
		idx.WriteByte(0)

		bodies.Write(data)
		offset += uint32(len(data))
	}

	var file bytes.Buffer
	file.WriteString("AAR\x00")
	file.Write(u32(0))
	file.Write(u32(uint32(len(names))))
	file.Write(u32(firstEntryOffset))
	file.Write(idx.Bytes())
	file.Write(bodies.Bytes())

	ar, err := aar.Open(file.Bytes())
	if err != nil {
		t.Fatalf("aar.Open: %v", err)
	}
	return ar
}

func TestLoadImageListOrdersByFrameIndex(t *testing.T) {
	img := oneByOneQNT(t)
	ar := buildArchive(t, map[string][]byte{
		"face_01.qnt": img,
		"face_00.qnt": img,
		"face_10.qnt": img,
		"other.qnt":   img,
	})
	src := NewAarSource(ar)

	frames, err := src.LoadImageList(context.Background(), "face")
	if err != nil {
		t.Fatalf("LoadImageList: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3 (00,01,10; other.qnt excluded)", len(frames))
	}
}

func TestLoadImageListCaseInsensitive(t *testing.T) {
	img := oneByOneQNT(t)
	ar := buildArchive(t, map[string][]byte{
		"FACE_00.QNT": img,
	})
	src := NewAarSource(ar)

	frames, err := src.LoadImageList(context.Background(), "face")
	if err != nil {
		t.Fatalf("LoadImageList: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
}

func TestLoadImageListNoMatchIsNotAnError(t *testing.T) {
	ar := buildArchive(t, map[string][]byte{})
	src := NewAarSource(ar)

	frames, err := src.LoadImageList(context.Background(), "missing")
	if err != nil {
		t.Fatalf("LoadImageList: %v", err)
	}
	if frames != nil {
		t.Fatalf("frames = %v, want nil", frames)
	}
}

func TestLoadImageDecodesArchiveEntry(t *testing.T) {
	ar := buildArchive(t, map[string][]byte{"tex.qnt": oneByOneQNT(t)})
	src := NewAarSource(ar)

	img, err := src.LoadImage(context.Background(), "tex.qnt")
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Width != 1 || img.Height != 1 {
		t.Fatalf("dims = %dx%d, want 1x1", img.Width, img.Height)
	}
}
