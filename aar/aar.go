// Package aar decodes the AAR container format: an indexed archive of
// raw or zlib-compressed (ZLB-framed) entries, with optional v2 name
// obfuscation and symlink entries. Parsing the index and resolving or
// loading one entry are kept as separate steps.
package aar

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/internal/cursor"
	"github.com/yuzusoft/scenekit/internal/ferr"
	"github.com/yuzusoft/scenekit/internal/inflate"
)

// EntryKind is the type tag stored per archive entry.
type EntryKind int32

const (
	KindCompressed EntryKind = 0
	KindRaw        EntryKind = 1
	KindSymlink    EntryKind = 2
)

// Entry describes one archive member.
type Entry struct {
	Name           string
	Offset         uint32
	Size           uint32
	Kind           EntryKind
	SymlinkTarget  string // only set for v2 KindSymlink entries
}

// Archive is a parsed AAR index plus the backing bytes it indexes into.
// Entries are resolved case-insensitively, matching spec.md §4.4.
type Archive struct {
	Version     uint32
	data        []byte
	entries     []Entry
	byLowerName map[string]int // lowercased name -> index into entries
	order       []string       // original-case names, insertion order
}

const (
	headerSize = 16
	zlbMagic   = "ZLB\x00"
)

// unmaskV2 reverses AAR v2's per-byte name obfuscation: b -> (b - 0x60) mod 256.
func unmaskV2(b byte) byte {
	return b - 0x60
}

// Open parses the 16-byte AAR header and its entry index out of data.
// data is retained (not copied) for later Load calls.
func Open(data []byte) (*Archive, error) {
	c := cursor.New(data)

	magic, err := c.FourCC()
	if err != nil {
		return nil, errors.Wrap(err, "aar: reading magic")
	}
	if magic != "AAR\x00" {
		return nil, ferr.New(ferr.BadMagic, "aar: got %q", magic)
	}

	version, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "aar: reading version")
	}
	if version != 0 && version != 2 {
		return nil, ferr.New(ferr.UnsupportedVersion, "aar: version %d", version)
	}

	nrEntries, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "aar: reading nr_entries")
	}
	firstEntryOffset, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "aar: reading first_entry_offset")
	}
	if int(firstEntryOffset) < headerSize || int(firstEntryOffset) > len(data) {
		return nil, ferr.New(ferr.Truncated, "aar: first_entry_offset %d out of range", firstEntryOffset)
	}

	ar := &Archive{
		Version:     version,
		data:        data,
		entries:     make([]Entry, 0, nrEntries),
		byLowerName: make(map[string]int, nrEntries),
		order:       make([]string, 0, nrEntries),
	}

	idx := cursor.New(data[headerSize:firstEntryOffset])
	var unmask cursor.UnmaskFunc
	if version == 2 {
		unmask = unmaskV2
	}

	for i := uint32(0); i < nrEntries; i++ {
		var e Entry

		offset, err := idx.U32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "aar: entry %d offset", i)
		}
		size, err := idx.U32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "aar: entry %d size", i)
		}
		typ, err := idx.I32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "aar: entry %d type", i)
		}
		name, err := idx.CStr(unmask)
		if err != nil {
			return nil, errors.Wrapf(err, "aar: entry %d name", i)
		}

		e.Offset, e.Size, e.Kind, e.Name = offset, size, EntryKind(typ), name

		if version == 2 && e.Kind == KindSymlink {
			target, err := idx.CStr(unmask)
			if err != nil {
				return nil, errors.Wrapf(err, "aar: entry %d symlink target", i)
			}
			e.SymlinkTarget = target
		}

		lower := strings.ToLower(e.Name)
		ar.byLowerName[lower] = len(ar.entries)
		ar.order = append(ar.order, e.Name)
		ar.entries = append(ar.entries, e)
	}

	return ar, nil
}

// Filenames returns the original (non-lowered) entry names in the order
// they appear in the index.
func (ar *Archive) Filenames() []string {
	return ar.order
}

// Exists reports whether name resolves to an entry, in O(1), without
// decompressing it.
func (ar *Archive) Exists(name string) bool {
	_, ok := ar.byLowerName[strings.ToLower(name)]
	return ok
}

func (ar *Archive) find(name string) (*Entry, error) {
	i, ok := ar.byLowerName[strings.ToLower(name)]
	if !ok {
		return nil, ferr.New(ferr.Truncated, "aar: entry %q not found", name)
	}
	return &ar.entries[i], nil
}

// Load resolves name case-insensitively and returns its decompressed
// (or raw) bytes.
func (ar *Archive) Load(name string) ([]byte, error) {
	e, err := ar.find(name)
	if err != nil {
		return nil, err
	}
	return ar.loadEntry(e)
}

func (ar *Archive) slice(e *Entry) ([]byte, error) {
	start := int(e.Offset)
	end := start + int(e.Size)
	if start < 0 || end > len(ar.data) || end < start {
		return nil, ferr.New(ferr.Truncated, "aar: entry %q range [%d,%d) exceeds file", e.Name, start, end)
	}
	return ar.data[start:end], nil
}

func (ar *Archive) loadEntry(e *Entry) ([]byte, error) {
	switch e.Kind {
	case KindRaw:
		return ar.slice(e)
	case KindCompressed:
		return ar.loadCompressed(e)
	case KindSymlink:
		return nil, ferr.New(ferr.NotImplemented, "aar: symlink entry %q", e.Name)
	default:
		return nil, ferr.New(ferr.NotImplemented, "aar: unknown entry kind %d for %q", e.Kind, e.Name)
	}
}

// loadCompressed validates and strips the ZLB framing (magic, version,
// uncompressed size, compressed size) then inflates the payload.
func (ar *Archive) loadCompressed(e *Entry) ([]byte, error) {
	raw, err := ar.slice(e)
	if err != nil {
		return nil, err
	}

	c := cursor.New(raw)
	magic, err := c.FourCC()
	if err != nil {
		return nil, errors.Wrapf(err, "aar: %q ZLB magic", e.Name)
	}
	if magic != zlbMagic {
		return nil, ferr.New(ferr.BadMagic, "aar: %q expected ZLB magic, got %q", e.Name, magic)
	}
	zlbVersion, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrapf(err, "aar: %q ZLB version", e.Name)
	}
	if zlbVersion != 0 {
		return nil, ferr.New(ferr.UnsupportedVersion, "aar: %q ZLB version %d", e.Name, zlbVersion)
	}
	outSize, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrapf(err, "aar: %q ZLB out_size", e.Name)
	}
	inSize, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrapf(err, "aar: %q ZLB in_size", e.Name)
	}
	if inSize+16 != e.Size {
		return nil, ferr.New(ferr.SizeMismatch, "aar: %q in_size+16 (%d) != entry size (%d)", e.Name, inSize+16, e.Size)
	}

	payload, err := c.Bytes(int(inSize))
	if err != nil {
		return nil, errors.Wrapf(err, "aar: %q ZLB payload", e.Name)
	}

	out, err := inflate.Inflate(payload, int(outSize))
	if err != nil {
		return nil, errors.Wrapf(err, "aar: %q inflate", e.Name)
	}
	return out, nil
}
