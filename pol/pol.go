// Package pol decodes the POL polygonal-model format: a material tree,
// a list of skinned meshes with per-corner attribute indirection, and a
// bone hierarchy. Grounded on the teacher's stream-parse style for
// structured binary records (pack/wad/mesh/gow1.go, gow2.go parse a
// mesh record field-by-field off a single forward cursor the same way),
// generalized from the teacher's fixed big-endian PS2/PS3 record
// layouts to this format's little-endian, version-branching one.
package pol

import (
	"log"
	"strings"

	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/config"
	"github.com/yuzusoft/scenekit/internal/cursor"
	"github.com/yuzusoft/scenekit/internal/ferr"
	"github.com/go-gl/mathgl/mgl32"
)

// TextureRole identifies what a material texture is used for.
type TextureRole uint32

const (
	RoleColorMap    TextureRole = 1
	RoleSpecularMask TextureRole = 4
	RoleGlare       TextureRole = 5
	RoleAlphaMap    TextureRole = 6
	RoleLightMap    TextureRole = 7
	RoleNormalMap   TextureRole = 8
	RoleHeightMap   TextureRole = 11
)

func knownRole(r TextureRole) bool {
	switch r {
	case RoleColorMap, RoleSpecularMask, RoleGlare, RoleAlphaMap, RoleLightMap, RoleNormalMap, RoleHeightMap:
		return true
	}
	return false
}

// Material is a node in the material tree: either a leaf carrying
// textures, or an interior node carrying only children (never both).
type Material struct {
	Name     string
	Attrs    map[string]bool
	Textures map[TextureRole]string
	Children []*Material
}

// Vertex is a skinned position with weights sorted by descending weight.
type Vertex struct {
	Pos     mgl32.Vec3
	Weights []BoneWeight
}

// BoneWeight pairs a POL bone index with its skin weight.
type BoneWeight struct {
	Bone   int32
	Weight float32
}

// Triangle is one face with per-corner attribute indices into the
// owning mesh's shared uv/light-uv/color/alpha tables.
type Triangle struct {
	VertIndex    [3]uint32
	UVIndex      [3]uint32
	LightUVIndex [3]uint32 // valid only if the mesh has light UVs
	ColorIndex   [3]uint32
	AlphaIndex   [3]uint32 // valid only if the mesh has an alpha table
	Normals      [3]mgl32.Vec3
	SubmaterialIndex uint32
}

// Mesh is one renderable part: vertices/attributes plus the triangles
// that index into them.
type Mesh struct {
	Name          string
	Attrs         map[string]bool
	MaterialIndex int32 // -1 means "no material"
	Vertices      []Vertex
	UVs           []mgl32.Vec2
	LightUVs      []mgl32.Vec2 // nil if the file carried no light-uv table
	Colors        []mgl32.Vec3 // nil if the file carried no color table
	Alphas        []float32    // nil outside v2 or when the table is empty
	Triangles     []Triangle
	IsCollision   bool
}

// Bone is one joint in the bind-pose skeleton.
type Bone struct {
	Name     string
	Id       int32
	Parent   int32 // -1 = root
	Pos      mgl32.Vec3
	RotQuat  mgl32.Quat
}

// Pol is the full decoded model file.
type Pol struct {
	Version   uint32
	Materials []*Material
	Meshes    []*Mesh
	Bones     []*Bone
}

// Decode parses a complete POL file. Structural cross-reference
// invariants (index ranges, duplicate roles, footer presence) are
// validated as they are encountered; any violation is fatal.
func Decode(data []byte) (*Pol, error) {
	c := cursor.New(data)

	magic, err := c.FourCC()
	if err != nil {
		return nil, errors.Wrap(err, "pol: magic")
	}
	if magic != "POL\x00" {
		return nil, ferr.New(ferr.BadMagic, "pol: got %q", magic)
	}

	version, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "pol: version")
	}
	if version != 1 && version != 2 {
		return nil, ferr.New(ferr.UnsupportedVersion, "pol: version %d", version)
	}

	p := &Pol{Version: version}

	nrMaterials, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "pol: nr_materials")
	}
	for i := uint32(0); i < nrMaterials; i++ {
		mat, err := parseMaterial(c, true)
		if err != nil {
			return nil, errors.Wrapf(err, "pol: material %d", i)
		}
		p.Materials = append(p.Materials, mat)
	}

	nrMeshes, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "pol: nr_meshes")
	}
	for i := uint32(0); i < nrMeshes; i++ {
		mesh, err := parseMesh(c, version, p.Materials)
		if err != nil {
			return nil, errors.Wrapf(err, "pol: mesh %d", i)
		}
		if mesh != nil {
			p.Meshes = append(p.Meshes, mesh)
		}
	}

	nrBones, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "pol: nr_bones")
	}
	for i := uint32(0); i < nrBones; i++ {
		bone, err := parseBone(c)
		if err != nil {
			return nil, errors.Wrapf(err, "pol: bone %d", i)
		}
		if err := validateBoneParent(p.Bones, bone); err != nil {
			return nil, err
		}
		p.Bones = append(p.Bones, bone)
	}

	if c.Offset() != c.Len() {
		log.Printf("pol: %d trailing bytes after parse (offset %d, file length %d)", c.Len()-c.Offset(), c.Offset(), c.Len())
	}

	return p, nil
}

func validateBoneParent(seen []*Bone, b *Bone) error {
	if b.Parent < 0 {
		return nil
	}
	for _, s := range seen {
		if s.Id == b.Parent {
			return nil
		}
	}
	return ferr.New(ferr.IndexOutOfRange, "pol: bone %q parent id %d not found among earlier bones", b.Name, b.Parent)
}

// attrTokens scans "(token)" runs out of a name string (material or
// mesh attribute flags), returning the set of recognized tokens found
// and the name with every "(token)" run removed. Unrecognized tokens
// are logged and left out of the set, not rejected, mirroring
// spec.md §7's "unknown attribute token" anomaly.
func attrTokens(name string, known map[string]bool) (map[string]bool, string) {
	attrs := make(map[string]bool)
	var stripped strings.Builder
	rest := name
	for {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			break
		}
		close := strings.IndexByte(rest[open:], ')')
		if close < 0 {
			break
		}
		token := rest[open+1 : open+close]
		if known[token] {
			attrs[token] = true
		} else {
			log.Printf("pol: unknown attribute token %q in %q", token, name)
		}
		stripped.WriteString(rest[:open])
		rest = rest[open+close+1:]
	}
	stripped.WriteString(rest)
	return attrs, stripped.String()
}

var knownMaterialAttrs = map[string]bool{"alpha": true, "env": true, "sprite": true}
var knownMeshAttrs = map[string]bool{
	"alpha": true, "both": true, "env": true, "mirrored": true,
	"nolighting": true, "nomakeshadow": true, "sprite": true, "water": true,
}

func parseMaterial(c *cursor.Cursor, canHaveChildren bool) (*Material, error) {
	name, err := c.CStr(nil)
	if err != nil {
		return nil, errors.Wrap(err, "name")
	}
	attrs, stripped := attrTokens(name, knownMaterialAttrs)

	mat := &Material{Name: stripped, Attrs: attrs, Textures: make(map[TextureRole]string)}

	nrTextures, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "nr_textures")
	}
	for i := uint32(0); i < nrTextures; i++ {
		filename, err := c.CStr(nil)
		if err != nil {
			return nil, errors.Wrapf(err, "texture %d filename", i)
		}
		roleRaw, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "texture %d role", i)
		}
		role := TextureRole(roleRaw)
		if !knownRole(role) {
			log.Printf("pol: material %q texture %d has unknown role %d", name, i, roleRaw)
		}
		if _, dup := mat.Textures[role]; dup {
			return nil, ferr.New(ferr.DuplicateTextureRole, "pol: material %q role %d appears twice", name, roleRaw)
		}
		mat.Textures[role] = filename
	}

	if len(mat.Textures) > 0 {
		if _, ok := mat.Textures[RoleColorMap]; !ok {
			return nil, ferr.New(ferr.MissingColorMap, "pol: material %q has textures but no ColorMap", name)
		}
	}

	if canHaveChildren {
		nrChildren, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrap(err, "nr_children")
		}
		if nrChildren > 0 && len(mat.Textures) > 0 {
			return nil, ferr.New(ferr.MaterialHasBothTexturesAndChildren, "pol: material %q", name)
		}
		for i := uint32(0); i < nrChildren; i++ {
			child, err := parseMaterial(c, false)
			if err != nil {
				return nil, errors.Wrapf(err, "child %d", i)
			}
			mat.Children = append(mat.Children, child)
		}
	}

	return mat, nil
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

func readDirection(c *cursor.Cursor) (mgl32.Vec3, error) {
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
	return mgl32.Vec3{x, y, -z}, nil
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

func parseMesh(c *cursor.Cursor, version uint32, materials []*Material) (*Mesh, error) {
	typ, err := c.I32LE()
	if err != nil {
		return nil, errors.Wrap(err, "type")
	}
	if typ == -1 {
		return nil, nil // placeholder null mesh
	}
	if typ != 0 {
		return nil, ferr.New(ferr.BadMagic, "pol: mesh type %d (expected 0 or -1)", typ)
	}

	name, err := c.CStr(nil)
	if err != nil {
		return nil, errors.Wrap(err, "name")
	}
	attrs, stripped := attrTokens(name, knownMeshAttrs)

	materialIndex, err := c.I32LE()
	if err != nil {
		return nil, errors.Wrap(err, "material")
	}
	if materialIndex < -1 || materialIndex >= int32(len(materials)) {
		return nil, ferr.New(ferr.IndexOutOfRange, "pol: mesh %q material index %d out of range [-1,%d)", name, materialIndex, len(materials))
	}

	m := &Mesh{
		Name:          stripped,
		Attrs:         attrs,
		MaterialIndex: materialIndex,
		IsCollision:   strings.EqualFold(stripped, "collision"),
	}

	nrVertices, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "nr_vertices")
	}
	m.Vertices = make([]Vertex, nrVertices)
	for i := range m.Vertices {
		pos, err := readPosition(c)
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d position", i)
		}
		var weights []BoneWeight
		if version == 1 {
			count, err := c.U32LE()
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d weight count", i)
			}
			weights = make([]BoneWeight, count)
			for w := range weights {
				bone, err := c.U32LE()
				if err != nil {
					return nil, errors.Wrapf(err, "vertex %d weight %d bone", i, w)
				}
				weight, err := c.F32LE()
				if err != nil {
					return nil, errors.Wrapf(err, "vertex %d weight %d value", i, w)
				}
				weights[w] = BoneWeight{Bone: int32(bone), Weight: weight}
			}
		} else {
			count, err := c.U16LE()
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d weight count", i)
			}
			weights = make([]BoneWeight, count)
			for w := range weights {
				bone, err := c.U16LE()
				if err != nil {
					return nil, errors.Wrapf(err, "vertex %d weight %d bone", i, w)
				}
				weight, err := c.F32LE()
				if err != nil {
					return nil, errors.Wrapf(err, "vertex %d weight %d value", i, w)
				}
				weights[w] = BoneWeight{Bone: int32(bone), Weight: weight}
			}
		}
		sortWeightsDescending(weights)
		m.Vertices[i] = Vertex{Pos: pos, Weights: weights}
	}

	nrUVs, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "nr_uvs")
	}
	m.UVs = make([]mgl32.Vec2, nrUVs)
	for i := range m.UVs {
		u, err := c.F32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "uv %d u", i)
		}
		v, err := c.F32LE()
		if err != nil {
			return nil, errors.Wrapf(err, "uv %d v", i)
		}
		m.UVs[i] = mgl32.Vec2{u, -v}
	}

	nrLightUVs, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "nr_light_uvs")
	}
	if nrLightUVs > 0 {
		m.LightUVs = make([]mgl32.Vec2, nrLightUVs)
		for i := range m.LightUVs {
			u, err := c.F32LE()
			if err != nil {
				return nil, errors.Wrapf(err, "light uv %d u", i)
			}
			v, err := c.F32LE()
			if err != nil {
				return nil, errors.Wrapf(err, "light uv %d v", i)
			}
			m.LightUVs[i] = mgl32.Vec2{u, -v}
		}
	}

	nrColors, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "nr_colors")
	}
	if nrColors > 0 {
		m.Colors = make([]mgl32.Vec3, nrColors)
		for i := range m.Colors {
			if version == 1 {
				r, err := c.F32LE()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d r", i)
				}
				g, err := c.F32LE()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d g", i)
				}
				b, err := c.F32LE()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d b", i)
				}
				m.Colors[i] = mgl32.Vec3{r, g, b}
			} else {
				r, err := c.U8()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d r", i)
				}
				g, err := c.U8()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d g", i)
				}
				b, err := c.U8()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d b", i)
				}
				a, err := c.U8()
				if err != nil {
					return nil, errors.Wrapf(err, "color %d a", i)
				}
				if a != 255 {
					log.Printf("pol: mesh %q color %d has non-opaque alpha %d", name, i, a)
				}
				m.Colors[i] = mgl32.Vec3{float32(r) / 255, float32(g) / 255, float32(b) / 255}
			}
		}
	}

	if version == 2 {
		nrAlphas, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrap(err, "nr_alphas")
		}
		if nrAlphas > 0 {
			m.Alphas = make([]float32, nrAlphas)
			for i := range m.Alphas {
				a, err := c.U8()
				if err != nil {
					return nil, errors.Wrapf(err, "alpha %d", i)
				}
				m.Alphas[i] = float32(a) / 255
			}
		}
	}

	nrTriangles, err := c.U32LE()
	if err != nil {
		return nil, errors.Wrap(err, "nr_triangles")
	}
	var submaterialCount int
	if m.MaterialIndex >= 0 {
		submaterialCount = len(materials[m.MaterialIndex].Children)
	}
	m.Triangles = make([]Triangle, nrTriangles)
	for i := range m.Triangles {
		t, err := parseTriangle(c, m, uint32(submaterialCount))
		if err != nil {
			return nil, errors.Wrapf(err, "triangle %d", i)
		}
		m.Triangles[i] = t
	}

	if version == 1 {
		a, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrap(err, "v1 footer a")
		}
		b, err := c.U32LE()
		if err != nil {
			return nil, errors.Wrap(err, "v1 footer b")
		}
		if a != 1 || b != 0 {
			return nil, ferr.New(ferr.UnexpectedFooter, "pol: mesh %q footer (%d,%d), expected (1,0)", name, a, b)
		}
	}

	return m, nil
}

func parseTriangle(c *cursor.Cursor, m *Mesh, submaterialCount uint32) (Triangle, error) {
	var t Triangle

	for i := 0; i < 3; i++ {
		v, err := c.U32LE()
		if err != nil {
			return t, errors.Wrapf(err, "vert_index %d", i)
		}
		if v >= uint32(len(m.Vertices)) {
			return t, ferr.New(ferr.IndexOutOfRange, "vert_index %d = %d exceeds %d vertices", i, v, len(m.Vertices))
		}
		t.VertIndex[i] = v
	}
	for i := 0; i < 3; i++ {
		v, err := c.U32LE()
		if err != nil {
			return t, errors.Wrapf(err, "uv_index %d", i)
		}
		if v >= uint32(len(m.UVs)) {
			return t, ferr.New(ferr.IndexOutOfRange, "uv_index %d = %d exceeds %d uvs", i, v, len(m.UVs))
		}
		t.UVIndex[i] = v
	}
	if len(m.LightUVs) > 0 {
		for i := 0; i < 3; i++ {
			raw, err := c.U32LE()
			if err != nil {
				return t, errors.Wrapf(err, "light_uv_index %d", i)
			}
			v := raw - uint32(len(m.UVs))
			if v >= uint32(len(m.LightUVs)) {
				return t, ferr.New(ferr.IndexOutOfRange, "light_uv_index %d = %d exceeds %d light uvs", i, v, len(m.LightUVs))
			}
			t.LightUVIndex[i] = v
		}
	}
	for i := 0; i < 3; i++ {
		v, err := c.U32LE()
		if err != nil {
			return t, errors.Wrapf(err, "color_index %d", i)
		}
		if len(m.Colors) > 0 && v >= uint32(len(m.Colors)) {
			return t, ferr.New(ferr.IndexOutOfRange, "color_index %d = %d exceeds %d colors", i, v, len(m.Colors))
		}
		t.ColorIndex[i] = v
	}
	if len(m.Alphas) > 0 {
		for i := 0; i < 3; i++ {
			v, err := c.U32LE()
			if err != nil {
				return t, errors.Wrapf(err, "alpha_index %d", i)
			}
			if v >= uint32(len(m.Alphas)) {
				return t, ferr.New(ferr.IndexOutOfRange, "alpha_index %d = %d exceeds %d alphas", i, v, len(m.Alphas))
			}
			t.AlphaIndex[i] = v
		}
	}
	for i := 0; i < 3; i++ {
		n, err := readDirection(c)
		if err != nil {
			return t, errors.Wrapf(err, "normal %d", i)
		}
		t.Normals[i] = n
	}

	sub, err := c.U32LE()
	if err != nil {
		return t, errors.Wrap(err, "submaterial_index")
	}
	if submaterialCount > 0 && sub >= submaterialCount {
		log.Printf("pol: mesh %q submaterial_index %d clamped to 0 (only %d children)", m.Name, sub, submaterialCount)
		sub = 0
	} else if submaterialCount == 0 {
		sub = 0
	}
	t.SubmaterialIndex = sub

	return t, nil
}

func parseBone(c *cursor.Cursor) (*Bone, error) {
	name, err := c.CStr(nil)
	if err != nil {
		return nil, errors.Wrap(err, "name")
	}
	id, err := c.I32LE()
	if err != nil {
		return nil, errors.Wrap(err, "id")
	}
	parent, err := c.I32LE()
	if err != nil {
		return nil, errors.Wrap(err, "parent")
	}
	pos, err := readPosition(c)
	if err != nil {
		return nil, errors.Wrap(err, "pos")
	}
	rot, err := readQuaternion(c)
	if err != nil {
		return nil, errors.Wrap(err, "rotq")
	}
	return &Bone{Name: name, Id: id, Parent: parent, Pos: pos, RotQuat: rot}, nil
}

// sortWeightsDescending is a tiny insertion sort: BoneWeight lists are
// capped at a handful of entries per vertex, so insertion sort avoids
// pulling in sort for a single-use, size-bounded case.
func sortWeightsDescending(w []BoneWeight) {
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j].Weight > w[j-1].Weight; j-- {
			w[j], w[j-1] = w[j-1], w[j]
		}
	}
}
