package pol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type writer struct{ bytes.Buffer }

func (w *writer) u32(v uint32) { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *writer) i32(v int32)  { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *writer) u16(v uint16) { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *writer) u8(v uint8)   { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *writer) f32(v float32) {
	binary.Write(&w.Buffer, binary.LittleEndian, v)
}
func (w *writer) cstr(s string) {
	w.Buffer.WriteString(s)
	w.Buffer.WriteByte(0)
}

// buildOneTriangleV1 assembles a minimal but valid v1 POL: one material
// with a single ColorMap, no bones, and one mesh made of exactly one
// triangle (three distinct vertices, no skin weights).
func buildOneTriangleV1(t *testing.T) []byte {
	var w writer
	w.Buffer.WriteString("POL\x00")
	w.u32(1) // version

	// materials
	w.u32(1)
	w.cstr("body")
	w.u32(1)            // nr_textures
	w.cstr("tex.qnt")    // filename
	w.u32(1)            // role ColorMap
	w.u32(0)            // nr_children

	// meshes
	w.u32(1)
	w.i32(0)      // mesh type present
	w.cstr("tri")
	w.i32(0) // material index 0
	w.u32(3) // nr_vertices
	for i := 0; i < 3; i++ {
		w.f32(float32(i))
		w.f32(0)
		w.f32(0)
		w.u32(0) // weight count (v1: u32)
	}
	w.u32(3) // nr_uvs
	for i := 0; i < 3; i++ {
		w.f32(0)
		w.f32(0)
	}
	w.u32(0) // nr_light_uvs
	w.u32(0) // nr_colors
	w.u32(1) // nr_triangles
	w.u32(0)
	w.u32(1)
	w.u32(2) // vert_index
	w.u32(0)
	w.u32(1)
	w.u32(2) // uv_index
	// no light uvs, no colors (table empty -> color_index still present per record but unchecked)
	w.u32(0)
	w.u32(0)
	w.u32(0) // color_index (unchecked since nr_colors==0)
	for i := 0; i < 3; i++ { // normals
		w.f32(0)
		w.f32(1)
		w.f32(0)
	}
	w.u32(0) // submaterial_index
	w.u32(1) // v1 footer a
	w.u32(0) // v1 footer b

	// bones
	w.u32(0)

	return w.Buffer.Bytes()
}

func TestDecodeOneTriangleV1(t *testing.T) {
	data := buildOneTriangleV1(t)
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(p.Materials) != 1 {
		t.Fatalf("materials = %d, want 1", len(p.Materials))
	}
	if p.Materials[0].Textures[RoleColorMap] != "tex.qnt" {
		t.Fatalf("ColorMap = %q, want tex.qnt", p.Materials[0].Textures[RoleColorMap])
	}
	if len(p.Meshes) != 1 {
		t.Fatalf("meshes = %d, want 1", len(p.Meshes))
	}
	m := p.Meshes[0]
	if len(m.Vertices) != 3 || len(m.Triangles) != 1 {
		t.Fatalf("mesh verts=%d tris=%d, want 3/1", len(m.Vertices), len(m.Triangles))
	}
	if len(p.Bones) != 0 {
		t.Fatalf("bones = %d, want 0", len(p.Bones))
	}
}

func TestDecodeRejectsDuplicateTextureRole(t *testing.T) {
	var w writer
	w.Buffer.WriteString("POL\x00")
	w.u32(1)
	w.u32(1) // nr_materials
	w.cstr("dup")
	w.u32(2) // nr_textures
	w.cstr("a.qnt")
	w.u32(1) // ColorMap
	w.cstr("b.qnt")
	w.u32(1) // ColorMap again -> duplicate
	w.u32(0)
	w.u32(0) // nr_meshes
	w.u32(0) // nr_bones

	if _, err := Decode(w.Buffer.Bytes()); err == nil {
		t.Fatal("expected duplicate texture role to fail")
	}
}

func TestDecodeRejectsMissingMagic(t *testing.T) {
	if _, err := Decode([]byte("XXXX")); err == nil {
		t.Fatal("expected bad magic error")
	}
}
