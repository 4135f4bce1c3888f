package scene_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/yuzusoft/scenekit/qnt"
	"github.com/yuzusoft/scenekit/scene"
	"github.com/yuzusoft/scenekit/scene/gltfsink"
)

// stubSource serves images by name from a fixed in-memory map and
// reports no frame sets, mirroring the simplest shape of
// source.AarSource without touching an archive.
type stubSource struct {
	images map[string]*qnt.Image
}

func (s *stubSource) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := s.images[name]
	return ok, nil
}
func (s *stubSource) Filenames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.images))
	for n := range s.images {
		names = append(names, n)
	}
	return names, nil
}
func (s *stubSource) Load(ctx context.Context, name string) ([]byte, error) {
	return nil, nil
}
func (s *stubSource) LoadImage(ctx context.Context, name string) (*qnt.Image, error) {
	return s.images[name], nil
}
func (s *stubSource) LoadImageList(ctx context.Context, base string) ([]*qnt.Image, error) {
	return nil, nil
}

// matcapRecordingSink wraps gltfsink.Sink and records the Matcap flag
// of every material description it is asked to create.
type matcapRecordingSink struct {
	*gltfsink.Sink
	matcap []bool
}

func (s *matcapRecordingSink) CreateMaterial(ctx context.Context, desc scene.MaterialDesc) (scene.MaterialHandle, error) {
	s.matcap = append(s.matcap, desc.Matcap)
	return s.Sink.CreateMaterial(ctx, desc)
}

func flatImage() *qnt.Image {
	return &qnt.Image{Width: 1, Height: 1, Pixels: []byte{255, 0, 0, 255}}
}

// polWriter assembles a minimal v1 POL byte stream, mirroring
// pol_test.go's writer/buildOneTriangleV1 fixture builder.
type polWriter struct{ bytes.Buffer }

func (w *polWriter) u32(v uint32) { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *polWriter) i32(v int32)  { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *polWriter) f32(v float32) {
	binary.Write(&w.Buffer, binary.LittleEndian, v)
}
func (w *polWriter) cstr(s string) {
	w.Buffer.WriteString(s)
	w.Buffer.WriteByte(0)
}

// buildOneTriangleEnvMesh builds a one-material, one-triangle v1 POL
// whose mesh name carries the (env) attribute token, so resolving its
// material must pick the matcap path (spec.md §4.8 scenario 4).
func buildOneTriangleEnvMesh() []byte {
	var w polWriter
	w.Buffer.WriteString("POL\x00")
	w.u32(1) // version

	w.u32(1) // nr_materials
	w.cstr("body")
	w.u32(1) // nr_textures
	w.cstr("tex.qnt")
	w.u32(1) // role ColorMap
	w.u32(0) // nr_children

	w.u32(1)      // nr_meshes
	w.i32(0)      // mesh type present
	w.cstr("tri(env)")
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
	w.u32(0)
	w.u32(0)
	w.u32(0) // color_index (unchecked since nr_colors==0)
	for i := 0; i < 3; i++ {
		w.f32(0)
		w.f32(1)
		w.f32(0)
	}
	w.u32(0) // submaterial_index
	w.u32(1) // v1 footer a
	w.u32(0) // v1 footer b

	w.u32(0) // nr_bones

	return w.Buffer.Bytes()
}

func TestLoadResolvesMatcapForEnvMesh(t *testing.T) {
	src := &stubSource{images: map[string]*qnt.Image{"tex.qnt": flatImage()}}
	sink := &matcapRecordingSink{Sink: gltfsink.New()}
	b := scene.NewBuilder(src, sink)
	defer b.Registry().Dispose(context.Background())

	if err := b.Load(context.Background(), buildOneTriangleEnvMesh(), nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sink.Doc.Materials) != 1 {
		t.Fatalf("materials created = %d, want 1", len(sink.Doc.Materials))
	}
	if len(sink.matcap) != 1 || !sink.matcap[0] {
		t.Fatalf("material Matcap flags = %v, want [true]", sink.matcap)
	}
	if len(sink.Doc.Meshes) != 1 {
		t.Fatalf("meshes created = %d, want 1", len(sink.Doc.Meshes))
	}
}

func TestLoadAppliesMotionToSkeletonlessMeshIsNoop(t *testing.T) {
	src := &stubSource{images: map[string]*qnt.Image{"tex.qnt": flatImage()}}
	sink := gltfsink.New()
	b := scene.NewBuilder(src, sink)
	defer b.Registry().Dispose(context.Background())

	if err := b.Load(context.Background(), buildOneTriangleEnvMesh(), nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// No bones, no motion loaded: ApplyMotion must be a clean no-op
	// rather than panicking on a nil skeleton/motion.
	if err := b.ApplyMotion(context.Background(), 0, 0); err != nil {
		t.Fatalf("ApplyMotion: %v", err)
	}
}
