// Package mot decodes MOT motion files: per-bone sequences of frame
// records (position, rotation quaternion, one opaque auxiliary
// quaternion). No cross-file validation happens here — reconciling a
// motion's bones against a POL skeleton is scene's job. Each bone is
// just a flat list of fixed records walked off one cursor.
package mot

import (
	"github.com/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/yuzusoft/scenekit/config"
	"github.com/yuzusoft/scenekit/internal/cursor"
	"github.com/yuzusoft/scenekit/internal/ferr"
)

// Frame is one bone's pose sample. AuxRotQuat's meaning was never
// published by the original tooling (spec.md §9) and is preserved
// verbatim for any caller that wants to round-trip it.
type Frame struct {
	Pos        mgl32.Vec3
	RotQuat    mgl32.Quat
	AuxRotQuat mgl32.Quat
}

// BoneMotion is one bone's full frame sequence, keyed by both its name
// and its POL-style numeric id so scene's Builder.ApplyMotion can
// resolve either way.
type BoneMotion struct {
	Name   string
	Id     uint32
	Parent uint32
	Frames []Frame
}

// Mot is a decoded motion file. Frames[0] of every bone is the bind
// (T-pose) sample and is excluded from playback by the scene builder.
type Mot struct {
	FrameCount uint32
	Bones      []BoneMotion
}

const expectedVersion = 0

// Decode parses a complete MOT file.
func Decode(data []byte) (*Mot, error) {
	c := cursor.New(data)

	magic, err := c.FourCC()
	if err != nil {
		return nil, errors.Wrap(err, "mot: magic")
	}
	if magic != "MOT\x00" {
		return nil, ferr.New(ferr.BadMagic, "mot: got %q", magic)
	}

	version, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "mot: version")
	}
	if version != expectedVersion {
		return nil, ferr.New(ferr.UnsupportedVersion, "mot: version %d", version)
	}

	frameCount, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "mot: frame_count")
	}
	boneCount, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "mot: bone_count")
	}

	m := &Mot{FrameCount: frameCount, Bones: make([]BoneMotion, boneCount)}

	for i := range m.Bones {
		name, err := c.CStr(nil)
		if err != nil {
			return nil, errors.Wrapf(err, "mot: bone %d name", i)
		}
		id, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "mot: bone %d id", i)
		}
		parent, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "mot: bone %d parent", i)
		}

		frames := make([]Frame, frameCount)
		for f := range frames {
			pos, err := readPosition(c)
			if err != nil {
				return nil, errors.Wrapf(err, "mot: bone %d frame %d pos", i, f)
			}
			rot, err := readQuaternion(c)
			if err != nil {
				return nil, errors.Wrapf(err, "mot: bone %d frame %d rotq", i, f)
			}
			aux, err := readQuaternion(c)
			if err != nil {
				return nil, errors.Wrapf(err, "mot: bone %d frame %d aux_rotq", i, f)
			}
			frames[f] = Frame{Pos: pos, RotQuat: rot, AuxRotQuat: aux}
		}

		m.Bones[i] = BoneMotion{Name: name, Id: id, Parent: parent, Frames: frames}
	}

	return m, nil
}

func readPosition(c *cursor.Cursor) (mgl32.Vec3, error) {
	x, err := c.F32LE()
	if err != nil {
		return mgl32.Vec3{}, err
	}
	y, err := c.F32LE()
	if err != nil {
		return mgl32.Vec3{}, err
	}
	z, err := c.F32LE()
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{x, y, -z}.Mul(config.InchesToMeters), nil
}

func readQuaternion(c *cursor.Cursor) (mgl32.Quat, error) {
	w, err := c.F32LE()
	if err != nil {
		return mgl32.Quat{}, err
	}
	x, err := c.F32LE()
	if err != nil {
		return mgl32.Quat{}, err
	}
	y, err := c.F32LE()
	if err != nil {
		return mgl32.Quat{}, err
	}
	z, err := c.F32LE()
	if err != nil {
		return mgl32.Quat{}, err
	}
	return mgl32.Quat{W: w, V: mgl32.Vec3{-x, -y, z}}, nil
}

// FrameIndexFor computes the playback frame index for counter F,
// skipping the bind-pose frame 0 (spec.md §4.6, §4.8 step 2, and the
// frame_count==1 boundary case in §8).
func (m *Mot) FrameIndexFor(f uint32) int {
	if m.FrameCount <= 1 {
		return 0
	}
	return int(f%(m.FrameCount-1)) + 1
}
