package scene

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/pol"
)

// resolvedMaterial is one renderable material plus the information
// needed to decide Matcap/Transparent per-mesh (spec.md §4.8).
type resolvedMaterial struct {
	handle      MaterialHandle
	colorMap    TextureHandle
	isEnv       bool   // source mesh had (env): matcap instead of color map
	animated    bool   // subscribed to color-frame animation
	frameSetKey string // key into Builder.colorFrameSets when animated
}

// materialList is either a single resolved material (polMaterial had
// its own textures) or a sublist, one renderable material per child
// (polMaterial had children only).
type materialList struct {
	single   *resolvedMaterial
	children []*resolvedMaterial
}

func (ml *materialList) count() int {
	if ml == nil {
		return 0
	}
	if ml.single != nil {
		return 1
	}
	return len(ml.children)
}

func (ml *materialList) at(i int) *resolvedMaterial {
	if ml == nil {
		return nil
	}
	if ml.single != nil {
		return ml.single
	}
	if i < 0 || i >= len(ml.children) {
		return nil
	}
	return ml.children[i]
}

// resolveMaterials builds a renderable MaterialHandle for every leaf of
// the POL material tree, keyed by top-level material index.
func (b *Builder) resolveMaterials(ctx context.Context, materials []*pol.Material, meshIsEnv map[int]bool) ([]*materialList, error) {
	out := make([]*materialList, len(materials))
	for i, m := range materials {
		ml, err := b.resolveOneMaterial(ctx, m, meshIsEnv[i])
		if err != nil {
			return nil, errors.Wrapf(err, "scene: material %d %q", i, m.Name)
		}
		out[i] = ml
	}
	return out, nil
}

func (b *Builder) resolveOneMaterial(ctx context.Context, m *pol.Material, isEnv bool) (*materialList, error) {
	if len(m.Children) > 0 {
		children := make([]*resolvedMaterial, len(m.Children))
		for i, child := range m.Children {
			rm, err := b.buildRenderMaterial(ctx, child, isEnv)
			if err != nil {
				return nil, errors.Wrapf(err, "child %d %q", i, child.Name)
			}
			children[i] = rm
		}
		return &materialList{children: children}, nil
	}

	rm, err := b.buildRenderMaterial(ctx, m, isEnv)
	if err != nil {
		return nil, err
	}
	return &materialList{single: rm}, nil
}

func (b *Builder) buildRenderMaterial(ctx context.Context, m *pol.Material, isEnv bool) (*resolvedMaterial, error) {
	desc := MaterialDesc{
		Name:             m.Name,
		Matcap:           isEnv,
		LightMapIntensity: 0.5,
		NormalScaleY:     -1,
		AdditiveBlending: false,
	}

	var colorTex TextureHandle
	var colorImg *qntImageRef
	var err error

	if name, ok := m.Textures[pol.RoleColorMap]; ok {
		colorTex, colorImg, err = b.loadTextureWithFrames(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "color map %q", name)
		}
		if isEnv {
			desc.Matcap = true
		}
	}
	if name, ok := m.Textures[pol.RoleNormalMap]; ok {
		tex, _, err := b.loadTextureWithFrames(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "normal map %q", name)
		}
		desc.NormalMap = tex
	}
	if name, ok := m.Textures[pol.RoleLightMap]; ok {
		tex, _, err := b.loadTextureWithFrames(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "light map %q", name)
		}
		desc.LightMap = tex
	}
	if name, ok := m.Textures[pol.RoleAlphaMap]; ok {
		colorName := m.Textures[pol.RoleColorMap]
		if name != colorName {
			tex, _, err := b.loadTextureWithFrames(ctx, name)
			if err != nil {
				return nil, errors.Wrapf(err, "alpha map %q", name)
			}
			desc.AlphaMap = tex
			desc.Transparent = true
		}
	}
	if desc.AlphaMap == nil && colorImg != nil && colorImg.hasAlpha {
		desc.AlphaTest = 0.1
	}

	for role := range m.Textures {
		switch role {
		case pol.RoleColorMap, pol.RoleNormalMap, pol.RoleLightMap, pol.RoleAlphaMap:
		default:
			logUnusedRole(m.Name, role)
		}
	}

	desc.ColorMap = colorTex
	desc.HasColorFrames = colorImg != nil && colorImg.animated

	handle, err := b.sink.CreateMaterial(ctx, desc)
	if err != nil {
		return nil, err
	}
	b.registry.add(handle)

	rm := &resolvedMaterial{
		handle:   handle,
		colorMap: colorTex,
		isEnv:    isEnv,
		animated: desc.HasColorFrames,
	}
	if desc.HasColorFrames {
		rm.frameSetKey = colorImg.base
	}
	return rm, nil
}

// qntImageRef tracks whether a loaded color texture resolved to an
// animated frame set and whether its (first) image reports alpha.
type qntImageRef struct {
	hasAlpha bool
	animated bool
	base     string
}

// loadTextureWithFrames resolves name to either a single image or an
// ordered frame set (spec.md §4.8 "Each color texture supports
// frames"). Frame sets are only meaningful for color maps, but the
// loader is shared across roles since the source never distinguishes.
func (b *Builder) loadTextureWithFrames(ctx context.Context, name string) (TextureHandle, *qntImageRef, error) {
	base := trimExt(name)
	frames, err := b.source.LoadImageList(ctx, base)
	if err == nil && len(frames) > 1 {
		handles := make([]TextureHandle, len(frames))
		for i, img := range frames {
			h, err := b.sink.CreateTexture(ctx, base, img)
			if err != nil {
				return nil, nil, err
			}
			handles[i] = h
			b.registry.add(h)
		}
		b.colorFrameSets[base] = handles
		ref := &qntImageRef{hasAlpha: frames[0].HasAlpha, animated: true, base: base}
		return handles[0], ref, nil
	}

	img, err := b.source.LoadImage(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	h, err := b.sink.CreateTexture(ctx, name, img)
	if err != nil {
		return nil, nil, err
	}
	b.registry.add(h)
	return h, &qntImageRef{hasAlpha: img.HasAlpha}, nil
}

func trimExt(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '\\' && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

func logUnusedRole(materialName string, role pol.TextureRole) {
	log.Printf("scene: material %q references unresolved role %d", materialName, role)
}
