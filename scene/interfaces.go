// Package scene assembles the four decoded formats (aar, qnt, pol,
// mot) plus the opr text overlay into a renderer-neutral scene: a
// bind-pose skeleton, flattened skinned geometry grouped by
// sub-material, and material descriptors with texture roles. It
// consumes byte ranges from a BlobSource and emits calls to a
// SceneSink; it never touches a GPU itself.
//
// ResourceRegistry owns every resource a Builder creates and can tear
// all of it down as a unit. Mesh flattening turns a decoded IR mesh
// into interleaved per-triangle-corner attribute buffers plus an
// index/group list, ready for a sink to upload as-is.
package scene

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/yuzusoft/scenekit/qnt"
)

// BlobSource is the external collaborator that resolves asset names to
// bytes or decoded images. Names use backslash path separators, the
// same convention AAR archives store them with.
type BlobSource interface {
	Exists(ctx context.Context, name string) (bool, error)
	Filenames(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) ([]byte, error)
	LoadImage(ctx context.Context, name string) (*qnt.Image, error)
	// LoadImageList resolves an ordered animation-frame set for a
	// color texture named without its extension, e.g. "face" resolving
	// to face_00.qnt, face_01.qnt, ...
	LoadImageList(ctx context.Context, base string) ([]*qnt.Image, error)
}

// TextureHandle, MaterialHandle, GeometryHandle, SkeletonHandle and
// MeshHandle are opaque resource handles minted by a SceneSink
// implementation (a concrete renderer backend, or scene/gltfsink's
// example implementation). The core never inspects their contents.
type (
	TextureHandle  interface{}
	MaterialHandle interface{}
	GeometryHandle interface{}
	SkeletonHandle interface{}
	MeshHandle     interface{}
)

// MaterialDesc is everything SceneBuilder knows about a material when
// asking the sink to create one.
type MaterialDesc struct {
	Name          string
	Matcap        bool // (env) meshes: color map sampled by view-space normal instead of phong-shaded
	ColorMap      TextureHandle
	NormalMap     TextureHandle
	LightMap      TextureHandle
	LightMapIntensity float32
	AlphaMap      TextureHandle
	Transparent   bool
	AlphaTest     float32 // 0 means "no alpha test"
	NormalScaleY  float32 // always -1: the source engine's normal map green channel is flipped relative to glTF's convention
	DoubleSided   bool
	AdditiveBlending bool
	HasColorFrames bool // subscribes to texture-animation ticks (TXA)
}

// GeometryGroup partitions a flat triangle-corner buffer by the
// sub-material it should render with.
type GeometryGroup struct {
	Start, Count  int
	MaterialIndex int
}

// SkinWeight is one (joint, weight) pair in a vertex's up-to-4-wide
// skin binding, zero-padded when a vertex has fewer influences.
type SkinWeight struct {
	JointIndex int
	Weight     float32
}

// GeometryDesc is the flattened, per-triangle-corner attribute set
// SceneBuilder hands to a sink to create one drawable mesh.
type GeometryDesc struct {
	Position   []mgl32.Vec3
	Normal     []mgl32.Vec3
	UV         []mgl32.Vec2
	UV2        []mgl32.Vec2 // light-uv, nil if the mesh has none
	Color      []mgl32.Vec3
	Alpha      []float32 // per-corner alpha, defaulting to 1 where the mesh carries no alpha table
	SkinIndex  [][4]int
	SkinWeight [][4]float32
	Groups     []GeometryGroup
}

// SceneSink is the external collaborator that turns SceneBuilder's
// plain data structures into GPU-side resources.
type SceneSink interface {
	CreateTexture(ctx context.Context, name string, img *qnt.Image) (TextureHandle, error)
	CreateMaterial(ctx context.Context, desc MaterialDesc) (MaterialHandle, error)
	CreateGeometry(ctx context.Context, desc GeometryDesc) (GeometryHandle, error)
	CreateSkeleton(ctx context.Context, skel *Skeleton) (SkeletonHandle, error)
	CreateSkinnedMesh(ctx context.Context, geo GeometryHandle, materials []MaterialHandle, skel SkeletonHandle) (MeshHandle, error)

	// SetBoneBindLocal sets joint jointIndex's rest-pose parent-relative
	// transform (used once, at skeleton creation time, to "repose" it).
	SetBoneBindLocal(ctx context.Context, skel SkeletonHandle, jointIndex int, local mgl32.Mat4) error
	// SetBonePose sets joint jointIndex's per-frame parent-relative
	// position/rotation, once per joint per animation frame applied.
	SetBonePose(ctx context.Context, skel SkeletonHandle, jointIndex int, pos mgl32.Vec3, rot mgl32.Quat) error
	// SetMaterialColorTexture swaps a material's color texture, used by
	// both UV-scroll offset updates (same texture, new UV offset) and
	// TXA-driven frame swaps (new texture entirely).
	SetMaterialColorTexture(ctx context.Context, mat MaterialHandle, tex TextureHandle, uvOffset mgl32.Vec2) error

	// Destroy releases one handle previously returned by a Create*
	// call. ResourceRegistry calls it in insertion order so a Builder
	// can be torn down as a unit.
	Destroy(ctx context.Context, handle interface{}) error
}
