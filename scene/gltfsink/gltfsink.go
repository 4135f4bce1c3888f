// Package gltfsink is an example scene.SceneSink backed by
// github.com/qmuntal/gltf: it turns Builder calls into an in-memory
// glTF document that can be saved or encoded to .glb. Accessor, image
// and node wiring happen as one stateful sink implementing
// scene.SceneSink, rather than a set of per-resource exporter methods.
package gltfsink

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/yuzusoft/scenekit/qnt"
	"github.com/yuzusoft/scenekit/scene"
)

// Sink accumulates scene.Builder output into a single gltf.Document.
type Sink struct {
	Doc *gltf.Document

	samplerIndex *uint32
	skeletons    map[*skeletonHandle]*scene.Skeleton
}

// New returns an empty Sink with a fresh gltf.Document.
func New() *Sink {
	return &Sink{
		Doc:       gltf.NewDocument(),
		skeletons: make(map[*skeletonHandle]*scene.Skeleton),
	}
}

type textureHandle struct {
	textureIndex uint32
}

type materialHandle struct {
	materialIndex uint32
	desc          scene.MaterialDesc
}

type geometryHandle struct {
	desc scene.GeometryDesc
}

type skeletonHandle struct {
	nodeIndexes []uint32 // one gltf node per joint, parented per scene.Joint.ParentIndex
	skinIndex   uint32
}

type meshHandle struct {
	nodeIndex uint32
}

func (s *Sink) sampler() uint32 {
	if s.samplerIndex != nil {
		return *s.samplerIndex
	}
	idx := uint32(len(s.Doc.Samplers))
	s.Doc.Samplers = append(s.Doc.Samplers, &gltf.Sampler{
		MagFilter: gltf.MagLinear,
		MinFilter: gltf.MinLinear,
		WrapS:     gltf.WrapRepeat,
		WrapT:     gltf.WrapRepeat,
	})
	s.samplerIndex = &idx
	return idx
}

// CreateTexture encodes img as PNG and embeds it as a glTF image plus
// texture (spec.md §6; grounded on txr/export_gltf.go's modeler.WriteImage call).
func (s *Sink) CreateTexture(ctx context.Context, name string, img *qnt.Image) (scene.TextureHandle, error) {
	rgba := &image.NRGBA{
		Pix:    img.Pixels,
		Stride: ((img.Width + 1) &^ 1) * 4, // qnt rows are padded to an even width
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, errors.Wrapf(err, "gltfsink: encoding %q as png", name)
	}

	imageIndex, err := modeler.WriteImage(s.Doc, name, "image/png", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, errors.Wrapf(err, "gltfsink: writing image %q", name)
	}

	textureIndex := uint32(len(s.Doc.Textures))
	s.Doc.Textures = append(s.Doc.Textures, &gltf.Texture{
		Name:    name,
		Sampler: gltf.Index(s.sampler()),
		Source:  gltf.Index(imageIndex),
	})

	return &textureHandle{textureIndex: textureIndex}, nil
}

// CreateMaterial allocates a gltf.Material and wires desc's color and
// normal map textures, when present, at creation time;
// SetMaterialColorTexture can rewire the color texture later.
func (s *Sink) CreateMaterial(ctx context.Context, desc scene.MaterialDesc) (scene.MaterialHandle, error) {
	mat := &gltf.Material{
		Name:        desc.Name,
		DoubleSided: desc.DoubleSided,
	}
	metallic := float32(0.0)
	pbr := &gltf.PBRMetallicRoughness{
		MetallicFactor: &metallic,
	}
	mat.PBRMetallicRoughness = pbr

	if desc.Transparent {
		mat.AlphaMode = gltf.AlphaBlend
	} else if desc.AlphaTest > 0 {
		cutoff := float32(desc.AlphaTest)
		mat.AlphaMode = gltf.AlphaMask
		mat.AlphaCutoff = &cutoff
	}

	if tex, ok := desc.ColorMap.(*textureHandle); ok && tex != nil {
		pbr.BaseColorTexture = &gltf.TextureInfo{Index: tex.textureIndex}
	}
	if tex, ok := desc.NormalMap.(*textureHandle); ok && tex != nil {
		normalTextureIndex := tex.textureIndex
		mat.NormalTexture = &gltf.NormalTexture{Index: &normalTextureIndex}
	}

	index := uint32(len(s.Doc.Materials))
	s.Doc.Materials = append(s.Doc.Materials, mat)

	return &materialHandle{materialIndex: index, desc: desc}, nil
}

// CreateGeometry just retains the flattened buffers; accessors are
// written lazily in CreateSkinnedMesh once the per-group material
// split is known (grounded on mesh/export_gltf.go, which likewise
// writes POSITION/NORMAL/... once per primitive group).
func (s *Sink) CreateGeometry(ctx context.Context, desc scene.GeometryDesc) (scene.GeometryHandle, error) {
	return &geometryHandle{desc: desc}, nil
}

// CreateSkeleton allocates one gltf.Node per joint (parented following
// scene.Joint.ParentIndex) plus a gltf.Skin referencing all of them.
func (s *Sink) CreateSkeleton(ctx context.Context, skel *scene.Skeleton) (scene.SkeletonHandle, error) {
	h := &skeletonHandle{nodeIndexes: make([]uint32, len(skel.Joints))}

	base := uint32(len(s.Doc.Nodes))
	for i, j := range skel.Joints {
		s.Doc.Nodes = append(s.Doc.Nodes, &gltf.Node{Name: j.Name})
		h.nodeIndexes[i] = base + uint32(i)
	}
	for i, j := range skel.Joints {
		if j.ParentIndex < 0 {
			s.Doc.Scenes[0].Nodes = append(s.Doc.Scenes[0].Nodes, h.nodeIndexes[i])
			continue
		}
		parent := s.Doc.Nodes[h.nodeIndexes[j.ParentIndex]]
		parent.Children = append(parent.Children, h.nodeIndexes[i])
	}

	h.skinIndex = uint32(len(s.Doc.Skins))
	s.Doc.Skins = append(s.Doc.Skins, &gltf.Skin{
		Joints: h.nodeIndexes,
	})

	s.skeletons[h] = skel
	return h, nil
}

// CreateSkinnedMesh writes the flattened GeometryDesc as one gltf.Mesh
// with one primitive per sub-material group, then attaches it to a new
// node (skinned, if a skeleton handle is present).
func (s *Sink) CreateSkinnedMesh(ctx context.Context, geo scene.GeometryHandle, materials []scene.MaterialHandle, skel scene.SkeletonHandle) (scene.MeshHandle, error) {
	gh, ok := geo.(*geometryHandle)
	if !ok {
		return nil, errors.New("gltfsink: geometry handle from a different sink")
	}
	desc := gh.desc

	positions := make([][3]float32, len(desc.Position))
	normals := make([][3]float32, len(desc.Normal))
	uvs := make([][2]float32, len(desc.UV))
	colors := make([][4]float32, len(desc.Color))
	for i := range desc.Position {
		positions[i] = desc.Position[i]
		normals[i] = desc.Normal[i]
		uvs[i] = desc.UV[i]
		colors[i] = [4]float32{desc.Color[i][0], desc.Color[i][1], desc.Color[i][2], desc.Alpha[i]}
	}

	positionAccessor := modeler.WritePosition(s.Doc, positions)
	normalAccessor := modeler.WriteNormal(s.Doc, normals)
	uvAccessor := modeler.WriteTextureCoord(s.Doc, uvs)
	colorAccessor := modeler.WriteColor(s.Doc, colors)

	var jointsAccessor, weightsAccessor *uint32
	if desc.SkinIndex != nil {
		joints := make([][4]uint16, len(desc.SkinIndex))
		weights := make([][4]float32, len(desc.SkinWeight))
		for i := range desc.SkinIndex {
			for k := 0; k < 4; k++ {
				joints[i][k] = uint16(desc.SkinIndex[i][k])
				weights[i][k] = desc.SkinWeight[i][k]
			}
		}
		ja := modeler.WriteJoints(s.Doc, joints)
		wa := modeler.WriteWeights(s.Doc, weights)
		jointsAccessor, weightsAccessor = &ja, &wa
	}

	mesh := &gltf.Mesh{}
	for _, g := range desc.Groups {
		indices := make([]uint32, 0, g.Count)
		for i := g.Start; i < g.Start+g.Count; i++ {
			indices = append(indices, uint32(i))
		}
		indicesAccessor := modeler.WriteIndices(s.Doc, indices)

		attrs := map[string]uint32{
			"POSITION":   positionAccessor,
			"NORMAL":     normalAccessor,
			"TEXCOORD_0": uvAccessor,
			"COLOR_0":    colorAccessor,
		}
		if jointsAccessor != nil {
			attrs["JOINTS_0"] = *jointsAccessor
			attrs["WEIGHTS_0"] = *weightsAccessor
		}

		prim := &gltf.Primitive{
			Indices:    gltf.Index(indicesAccessor),
			Attributes: attrs,
		}
		if mh, ok := materials[g.MaterialIndex%len(materials)].(*materialHandle); ok && mh != nil {
			prim.Material = gltf.Index(mh.materialIndex)
		}
		mesh.Primitives = append(mesh.Primitives, prim)
	}

	meshIndex := uint32(len(s.Doc.Meshes))
	s.Doc.Meshes = append(s.Doc.Meshes, mesh)

	node := &gltf.Node{Mesh: gltf.Index(meshIndex)}
	if sh, ok := skel.(*skeletonHandle); ok && sh != nil {
		node.Skin = gltf.Index(sh.skinIndex)
	}
	nodeIndex := uint32(len(s.Doc.Nodes))
	s.Doc.Nodes = append(s.Doc.Nodes, node)
	s.Doc.Scenes[0].Nodes = append(s.Doc.Scenes[0].Nodes, nodeIndex)

	return &meshHandle{nodeIndex: nodeIndex}, nil
}

// SetBoneBindLocal sets joint jointIndex's local TRS from its rest-pose
// matrix by decomposing it into translation/rotation (scale is always
// identity for this format).
func (s *Sink) SetBoneBindLocal(ctx context.Context, skel scene.SkeletonHandle, jointIndex int, local mgl32.Mat4) error {
	sh, ok := skel.(*skeletonHandle)
	if !ok {
		return errors.New("gltfsink: skeleton handle from a different sink")
	}
	if jointIndex < 0 || jointIndex >= len(sh.nodeIndexes) {
		return errors.Errorf("gltfsink: joint index %d out of range", jointIndex)
	}
	node := s.Doc.Nodes[sh.nodeIndexes[jointIndex]]
	setNodeTRS(node, local)
	return nil
}

// SetBonePose overwrites joint jointIndex's current local transform
// with a parent-relative position/rotation sample (spec.md §4.8).
func (s *Sink) SetBonePose(ctx context.Context, skel scene.SkeletonHandle, jointIndex int, pos mgl32.Vec3, rot mgl32.Quat) error {
	sh, ok := skel.(*skeletonHandle)
	if !ok {
		return errors.New("gltfsink: skeleton handle from a different sink")
	}
	if jointIndex < 0 || jointIndex >= len(sh.nodeIndexes) {
		return errors.Errorf("gltfsink: joint index %d out of range", jointIndex)
	}
	node := s.Doc.Nodes[sh.nodeIndexes[jointIndex]]
	node.Translation = [3]float32{pos[0], pos[1], pos[2]}
	node.Rotation = [4]float32{rot.V[0], rot.V[1], rot.V[2], rot.W}
	return nil
}

// SetMaterialColorTexture rewires a material's base color texture
// (TXA frame swap) and records its UV offset (UV scroll) in the
// material's Extras under "uvOffset".
func (s *Sink) SetMaterialColorTexture(ctx context.Context, mat scene.MaterialHandle, tex scene.TextureHandle, uvOffset mgl32.Vec2) error {
	mh, ok := mat.(*materialHandle)
	if !ok {
		return errors.New("gltfsink: material handle from a different sink")
	}
	gm := s.Doc.Materials[mh.materialIndex]
	if gm.PBRMetallicRoughness == nil {
		gm.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{}
	}
	if th, ok := tex.(*textureHandle); ok && th != nil {
		gm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: th.textureIndex}
	}
	if gm.Extras == nil {
		gm.Extras = map[string]interface{}{}
	}
	if extras, ok := gm.Extras.(map[string]interface{}); ok {
		extras["uvOffset"] = [2]float32{uvOffset[0], uvOffset[1]}
	}
	return nil
}

// Destroy removes a previously created resource. glTF documents have
// no notion of partial deletion mid-build, so Destroy here only clears
// the handle's own bookkeeping; the underlying document entries are
// left in place (harmless orphans once the document is discarded).
func (s *Sink) Destroy(ctx context.Context, handle interface{}) error {
	switch h := handle.(type) {
	case *skeletonHandle:
		delete(s.skeletons, h)
	case *textureHandle, *materialHandle, *geometryHandle, *meshHandle:
		// no-op: see doc comment.
	default:
		return errors.Errorf("gltfsink: unknown handle type %T", handle)
	}
	return nil
}

func setNodeTRS(node *gltf.Node, m mgl32.Mat4) {
	pos := m.Col(3)
	node.Translation = [3]float32{pos[0], pos[1], pos[2]}

	rotMat := mgl32.Mat4{
		m[0], m[1], m[2], 0,
		m[4], m[5], m[6], 0,
		m[8], m[9], m[10], 0,
		0, 0, 0, 1,
	}
	q := mgl32.Mat4ToQuat(rotMat)
	node.Rotation = [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}
