package scene

import (
	"context"
	"log"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/pol"
)

const maxSkinInfluences = 4

// buildGeometry flattens one POL mesh into a GeometryDesc: one entry
// per triangle corner, grouped by sub-material so a multi-material
// mesh renders each triangle range with the right material.
func buildGeometry(m *pol.Mesh, skel *Skeleton, submaterialCount int) (*GeometryDesc, error) {
	ordered := make([]int, len(m.Triangles))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return m.Triangles[ordered[a]].SubmaterialIndex < m.Triangles[ordered[b]].SubmaterialIndex
	})

	groups := make([]GeometryGroup, submaterialCount)
	for i := range groups {
		groups[i] = GeometryGroup{MaterialIndex: i}
	}
	if submaterialCount == 0 {
		groups = []GeometryGroup{{MaterialIndex: 0}}
	}

	n := len(ordered) * 3
	desc := &GeometryDesc{
		Position: make([]mgl32.Vec3, n),
		Normal:   make([]mgl32.Vec3, n),
		UV:       make([]mgl32.Vec2, n),
		Color:    make([]mgl32.Vec3, n),
		Alpha:    make([]float32, n),
	}
	if len(m.LightUVs) > 0 {
		desc.UV2 = make([]mgl32.Vec2, n)
	}
	if skel != nil {
		desc.SkinIndex = make([][4]int, n)
		desc.SkinWeight = make([][4]float32, n)
	}

	corner := 0
	curGroup := -1
	for _, ti := range ordered {
		t := m.Triangles[ti]
		sub := int(t.SubmaterialIndex)
		if sub >= len(groups) {
			sub = 0
		}
		if sub != curGroup {
			if curGroup >= 0 {
				groups[curGroup].Count = corner - groups[curGroup].Start
			}
			groups[sub].Start = corner
			curGroup = sub
		}

		for c := 0; c < 3; c++ {
			vi := t.VertIndex[c]
			v := m.Vertices[vi]
			desc.Position[corner] = v.Pos
			desc.Normal[corner] = t.Normals[c]
			desc.UV[corner] = m.UVs[t.UVIndex[c]]
			if desc.UV2 != nil {
				desc.UV2[corner] = m.LightUVs[t.LightUVIndex[c]]
			}
			if len(m.Colors) > 0 {
				desc.Color[corner] = m.Colors[t.ColorIndex[c]]
			} else {
				desc.Color[corner] = mgl32.Vec3{1, 1, 1}
			}
			if len(m.Alphas) > 0 {
				desc.Alpha[corner] = m.Alphas[t.AlphaIndex[c]]
			} else {
				desc.Alpha[corner] = 1
			}
			if skel != nil {
				idx, w := skinFor(v.Weights)
				desc.SkinIndex[corner] = idx
				desc.SkinWeight[corner] = w
			}
			corner++
		}
	}
	if curGroup >= 0 {
		groups[curGroup].Count = corner - groups[curGroup].Start
	}

	desc.Groups = groups
	return desc, nil
}

// skinFor normalizes up to 4 weights (already sorted descending by the
// pol decoder) into fixed-width, zero-padded skin arrays.
func skinFor(weights []pol.BoneWeight) ([4]int, [4]float32) {
	var idx [4]int
	var w [4]float32
	n := len(weights)
	if n > maxSkinInfluences {
		n = maxSkinInfluences
	}
	var sum float32
	for i := 0; i < n; i++ {
		idx[i] = int(weights[i].Bone)
		w[i] = weights[i].Weight
		sum += weights[i].Weight
	}
	if sum > 0 {
		for i := 0; i < n; i++ {
			w[i] /= sum
		}
	}
	return idx, w
}

// buildMesh flattens and creates the sink geometry/material set for one
// POL mesh, wiring skinning when a skeleton is present.
func (b *Builder) buildMesh(ctx context.Context, m *pol.Mesh, ml *materialList, skel *Skeleton, skelHandle SkeletonHandle) (MeshHandle, error) {
	if m.MaterialIndex < 0 {
		log.Printf("scene: mesh %q has no material, skipped", m.Name)
		return nil, nil
	}

	submaterialCount := ml.count()
	if submaterialCount == 0 {
		submaterialCount = 1
	}

	desc, err := buildGeometry(m, skel, submaterialCount)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %q", m.Name)
	}

	geo, err := b.sink.CreateGeometry(ctx, *desc)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %q CreateGeometry", m.Name)
	}
	b.registry.add(geo)

	materials := make([]MaterialHandle, submaterialCount)
	for i := range materials {
		if rm := ml.at(i); rm != nil {
			materials[i] = rm.handle
		}
	}

	mesh, err := b.sink.CreateSkinnedMesh(ctx, geo, materials, skelHandle)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %q CreateSkinnedMesh", m.Name)
	}
	b.registry.add(mesh)

	return mesh, nil
}
