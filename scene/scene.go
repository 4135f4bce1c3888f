package scene

import (
	"context"
	"log"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/mot"
	"github.com/yuzusoft/scenekit/opr"
	"github.com/yuzusoft/scenekit/pol"
)

// uvScrollBinding is one mesh's registered UV-scroll callback
// (spec.md §4.6/§4.8). Only valid for single-material meshes.
type uvScrollBinding struct {
	material MaterialHandle
	texture  TextureHandle
	uv       mgl32.Vec2
}

// Builder is the SceneBuilder (spec.md §4.8): it turns decoded IR
// (pol.Pol, mot.Mot, opr.Overlay) into SceneSink calls and owns the
// ResourceRegistry for everything it creates.
type Builder struct {
	source BlobSource
	sink   SceneSink

	registry *ResourceRegistry

	skeleton       *Skeleton
	skeletonHandle SkeletonHandle

	motion *mot.Mot

	colorFrameSets    map[string][]TextureHandle
	animatedMaterials []*resolvedMaterial
	uvScrolls         []*uvScrollBinding
	txa               *TxaTable

	meshes []MeshHandle
}

// NewBuilder constructs an empty Builder bound to the given BlobSource
// and SceneSink. Call Load to populate it from a POL file.
func NewBuilder(source BlobSource, sink SceneSink) *Builder {
	return &Builder{
		source:         source,
		sink:           sink,
		registry:       newResourceRegistry(sink),
		colorFrameSets: make(map[string][]TextureHandle),
	}
}

// Registry returns the ResourceRegistry tracking everything this
// Builder has created, for external teardown (spec.md §5).
func (b *Builder) Registry() *ResourceRegistry {
	return b.registry
}

// Load parses polData (and, if non-empty, oprData) and builds the full
// scene: skeleton, materials, flattened skinned geometry.
func (b *Builder) Load(ctx context.Context, polData []byte, oprData []byte) error {
	p, err := pol.Decode(polData)
	if err != nil {
		return errors.Wrap(err, "scene: decoding pol")
	}

	var overlay *opr.Overlay
	if len(oprData) > 0 {
		overlay, err = opr.Decode(oprData)
		if err != nil {
			return errors.Wrap(err, "scene: decoding opr")
		}
	}

	var skel *Skeleton
	if len(p.Bones) > 0 {
		skel = BuildSkeleton(p.Bones)
		if skel.DetectCycle() {
			return errors.New("scene: bone parent graph contains a cycle")
		}
		handle, err := b.sink.CreateSkeleton(ctx, skel)
		if err != nil {
			return errors.Wrap(err, "scene: CreateSkeleton")
		}
		for i, j := range skel.Joints {
			if err := b.sink.SetBoneBindLocal(ctx, handle, i, j.BindLocal); err != nil {
				return errors.Wrapf(err, "scene: SetBoneBindLocal joint %d", i)
			}
		}
		b.registry.add(handle)
		b.skeleton = skel
		b.skeletonHandle = handle
	}

	meshIsEnv := make(map[int]bool)
	for _, m := range p.Meshes {
		if m.MaterialIndex >= 0 && m.Attrs["env"] {
			meshIsEnv[int(m.MaterialIndex)] = true
		}
	}

	materialLists, err := b.resolveMaterials(ctx, p.Materials, meshIsEnv)
	if err != nil {
		return err
	}
	for _, ml := range materialLists {
		if ml == nil {
			continue
		}
		if ml.single != nil && ml.single.animated {
			b.animatedMaterials = append(b.animatedMaterials, ml.single)
		}
		for _, c := range ml.children {
			if c.animated {
				b.animatedMaterials = append(b.animatedMaterials, c)
			}
		}
	}

	for _, m := range p.Meshes {
		if m.IsCollision {
			continue // hidden collision hull, not rendered
		}
		if m.MaterialIndex < 0 {
			log.Printf("scene: mesh %q has no material, skipped", m.Name)
			continue
		}
		ml := materialLists[m.MaterialIndex]

		mh, err := b.buildMesh(ctx, m, ml, b.skeleton, b.skeletonHandle)
		if err != nil {
			return errors.Wrapf(err, "scene: mesh %q", m.Name)
		}
		if mh == nil {
			continue
		}
		b.meshes = append(b.meshes, mh)

		applyOprEffects(m, ml, overlay, b)
	}

	return nil
}

// applyOprEffects applies a mesh's OPR overlay entry: a UVScroll on a
// single-material mesh registers a UV-scroll binding for ApplyMotion.
// BlendMode, Edge and EdgeSize are only logged; they are not applied to
// the already-created material(s).
func applyOprEffects(m *pol.Mesh, ml *materialList, overlay *opr.Overlay, b *Builder) {
	if overlay == nil {
		return
	}
	ov, ok := overlay.Meshes[m.Name]
	if !ok {
		return
	}
	if ov.HasUVScroll {
		if ml.count() != 1 {
			log.Printf("scene: mesh %q has UVScroll but is not single-material, ignored", m.Name)
		} else if rm := ml.at(0); rm != nil {
			b.uvScrolls = append(b.uvScrolls, &uvScrollBinding{material: rm.handle, texture: rm.colorMap, uv: ov.UVScroll})
		}
	}
	if ov.AdditiveBlending || ov.NoEdge || ov.EdgeSize != 0 {
		log.Printf("scene: mesh %q requests blend/edge overlay attributes with no sink hook, ignored", m.Name)
	}
}

// LoadMotion parses and attaches a motion file for subsequent
// ApplyMotion calls. Bones present in the motion but absent from the
// skeleton are logged and skipped (spec.md §4.8 step 2, §7).
func (b *Builder) LoadMotion(motData []byte) error {
	m, err := mot.Decode(motData)
	if err != nil {
		return errors.Wrap(err, "scene: decoding mot")
	}
	b.motion = m
	return nil
}

// LoadTxa parses and attaches a texture-animation index table.
func (b *Builder) LoadTxa(txaData []byte) error {
	t, err := ParseTxaTable(txaData)
	if err != nil {
		return errors.Wrap(err, "scene: decoding txa")
	}
	b.txa = t
	return nil
}

// ApplyMotion runs one frame's worth of animation (spec.md §4.8
// "Motion application"): UV scroll, bone pose, and TXA texture swaps.
func (b *Builder) ApplyMotion(ctx context.Context, frame uint32, frameCount uint32) error {
	t := float32(frameCount) / 30.0

	for _, scroll := range b.uvScrolls {
		offset := scroll.uv.Mul(t)
		if err := b.sink.SetMaterialColorTexture(ctx, scroll.material, scroll.texture, offset); err != nil {
			return errors.Wrap(err, "scene: uv scroll update")
		}
	}

	if b.motion != nil && b.skeleton != nil {
		idx := b.motion.FrameIndexFor(frame)
		for _, bm := range b.motion.Bones {
			jointIndex, ok := b.skeleton.ByName(bm.Name)
			if !ok {
				jointIndex, ok = b.skeleton.ByID(int32(bm.Id))
			}
			if !ok {
				log.Printf("scene: motion bone %q (id %d) has no matching joint", bm.Name, bm.Id)
				continue
			}
			if idx >= len(bm.Frames) {
				continue
			}
			f := bm.Frames[idx]
			if err := b.sink.SetBonePose(ctx, b.skeletonHandle, jointIndex, f.Pos, f.RotQuat); err != nil {
				return errors.Wrapf(err, "scene: SetBonePose joint %d", jointIndex)
			}
		}
	}

	if b.txa != nil && len(b.txa.Indices) > 0 {
		i := int(frame) % len(b.txa.Indices)
		frameIdx := b.txa.Indices[i]
		for _, am := range b.animatedMaterials {
			frames := b.colorFrameSets[colorFrameKey(am)]
			if len(frames) == 0 {
				continue
			}
			if frameIdx < 0 || frameIdx >= len(frames) {
				frameIdx = 0
			}
			if err := b.sink.SetMaterialColorTexture(ctx, am.handle, frames[frameIdx], mgl32.Vec2{}); err != nil {
				return errors.Wrap(err, "scene: txa texture swap")
			}
		}
	}

	return nil
}

func colorFrameKey(rm *resolvedMaterial) string {
	// The frame set is keyed by the base name used to resolve it; since
	// resolvedMaterial only retains the first frame's handle, callers
	// that need the full set look it up by the base name that
	// buildRenderMaterial recorded in frameSetKey at load time.
	return rm.frameSetKey
}
