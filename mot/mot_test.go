package mot

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type writer struct{ bytes.Buffer }

func (w *writer) u32(v uint32) { binary.Write(&w.Buffer, binary.LittleEndian, v) }
func (w *writer) f32(v float32) {
	binary.Write(&w.Buffer, binary.LittleEndian, v)
}
func (w *writer) cstr(s string) {
	w.Buffer.WriteString(s)
	w.Buffer.WriteByte(0)
}
func (w *writer) frame() {
	for i := 0; i < 3; i++ { // pos
		w.f32(0)
	}
	for i := 0; i < 4; i++ { // rotq
		w.f32(0)
	}
	for i := 0; i < 4; i++ { // aux_rotq
		w.f32(0)
	}
}

func buildTwoBoneMot(t *testing.T, frameCount uint32) []byte {
	var w writer
	w.Buffer.WriteString("MOT\x00")
	w.u32(0) // version
	w.u32(frameCount)
	w.u32(2) // bone_count

	w.cstr("hip")
	w.u32(0) // id
	w.u32(0xFFFFFFFF) // parent (root sentinel, value unchecked by mot)
	for f := uint32(0); f < frameCount; f++ {
		w.frame()
	}

	w.cstr("knee")
	w.u32(1)
	w.u32(0)
	for f := uint32(0); f < frameCount; f++ {
		w.frame()
	}

	return w.Buffer.Bytes()
}

func TestDecodeTwoBoneMotion(t *testing.T) {
	data := buildTwoBoneMot(t, 3)
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.FrameCount != 3 || len(m.Bones) != 2 {
		t.Fatalf("got frameCount=%d bones=%d, want 3/2", m.FrameCount, len(m.Bones))
	}
	if m.Bones[0].Name != "hip" || m.Bones[1].Name != "knee" {
		t.Fatalf("bone names = %q,%q", m.Bones[0].Name, m.Bones[1].Name)
	}
}

func TestFrameIndexSkipsTPose(t *testing.T) {
	m := &Mot{FrameCount: 3}
	cases := []struct {
		f    uint32
		want int
	}{
		{0, 1},
		{1, 2},
		{2, 1},
		{3, 2},
	}
	for _, c := range cases {
		if got := m.FrameIndexFor(c.f); got != c.want {
			t.Errorf("FrameIndexFor(%d) = %d, want %d", c.f, got, c.want)
		}
	}
}

func TestFrameIndexSingleFrameGuard(t *testing.T) {
	m := &Mot{FrameCount: 1}
	if got := m.FrameIndexFor(5); got != 0 {
		t.Fatalf("FrameIndexFor with frame_count==1 = %d, want 0 (hold frame 0)", got)
	}
}
