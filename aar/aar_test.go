package aar

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

func i32(v int32) []byte {
	return u32(uint32(v))
}

func TestOpenEmptyV2(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("AAR\x00")
	buf.Write(u32(2))  // version
	buf.Write(u32(0))  // nr_entries
	buf.Write(u32(16)) // first_entry_offset

	ar, err := Open(buf.Bytes())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if names := ar.Filenames(); len(names) != 0 {
		t.Fatalf("Filenames = %v, want empty", names)
	}
	if _, err := ar.Load("anything"); err == nil {
		t.Fatal("Load on empty archive should fail")
	}
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

func TestCompressedEntryRoundTrip(t *testing.T) {
	payload := []byte("hello")
	compressed := zlibCompress(t, payload)

	var zlb bytes.Buffer
	zlb.WriteString("ZLB\x00")
	zlb.Write(u32(0))                      // zlb version
	zlb.Write(u32(uint32(len(payload))))    // out_size
	zlb.Write(u32(uint32(len(compressed)))) // in_size
	zlb.Write(compressed)

	entrySize := uint32(zlb.Len())

	// index: offset, size, type, name cstr
	var idx bytes.Buffer
	idx.Write(u32(0)) // placeholder, patched below
	idx.Write(u32(entrySize))
	idx.Write(i32(int32(KindCompressed)))
	idx.WriteString("h.txt\x00")

	firstEntryOffset := uint32(headerSize + idx.Len())

	var file bytes.Buffer
	file.WriteString("AAR\x00")
	file.Write(u32(0)) // version
	file.Write(u32(1)) // nr_entries
	file.Write(u32(firstEntryOffset))

	idxBytes := idx.Bytes()
	binary.LittleEndian.PutUint32(idxBytes[0:4], firstEntryOffset)
	file.Write(idxBytes)
	file.Write(zlb.Bytes())

	ar, err := Open(file.Bytes())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !ar.Exists("H.TXT") {
		t.Fatal("Exists should be case-insensitive")
	}
	got, err := ar.Load("h.TXT")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Load = %q, want %q", got, "hello")
	}
}
