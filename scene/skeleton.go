package scene

import (
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/yuzusoft/scenekit/pol"
)

// ambiguousJoint marks a bone name shared by more than one joint: the
// tagged-variant JointRef from spec.md §9 ("ById(u32) | ByName(str) |
// Ambiguous") collapses here to a sentinel index, since a lookup miss
// and an ambiguous lookup are both just "no usable match" to callers.
const ambiguousJoint = -1

// Joint is one bone of a built skeleton.
type Joint struct {
	Name   string
	Id     int32
	Parent int32 // POL bone id, -1 for root

	// ParentIndex is Parent resolved to an index into Skeleton.Joints,
	// or -1 for a root joint.
	ParentIndex int

	// InverseBind is the world-space inverse bind matrix, computed
	// directly from the POL bone's pos/rotq (spec.md §4.8).
	InverseBind mgl32.Mat4

	// BindLocal is the joint's parent-relative rest-pose transform,
	// derived from InverseBind hierarchically (spec.md §4.8 "Repose
	// the skeleton from inverse binds").
	BindLocal mgl32.Mat4
}

// Skeleton is a built bind-pose skeleton plus both lookup dictionaries
// spec.md §9 calls for: by POL bone id, and by (possibly non-unique)
// bone name.
type Skeleton struct {
	Joints []Joint

	byID   map[int32]int
	byName map[string]int // ambiguousJoint sentinel for non-unique names
}

// BuildSkeleton turns a POL bone list into a bind-pose skeleton. Bones
// are kept in POL order (spec.md: "id -> (joint, skin_index, bone
// info) in insertion order").
func BuildSkeleton(bones []*pol.Bone) *Skeleton {
	s := &Skeleton{
		Joints: make([]Joint, len(bones)),
		byID:   make(map[int32]int, len(bones)),
		byName: make(map[string]int, len(bones)),
	}

	worldBind := make([]mgl32.Mat4, len(bones))
	idToIndex := make(map[int32]int, len(bones))

	for i, b := range bones {
		// World bind matrix per spec.md §4.8: translate(rotate(pos,
		// rotq)) composed with rotate(rotq) — the engine stores bone
		// position already rotated into its own bind orientation.
		rotated := b.RotQuat.Rotate(b.Pos)
		worldBind[i] = mgl32.Translate3D(rotated[0], rotated[1], rotated[2]).Mul4(b.RotQuat.Mat4())
		idToIndex[b.Id] = i
	}

	for i, b := range bones {
		parentIndex := -1
		bindLocal := worldBind[i]
		if b.Parent >= 0 {
			pi, ok := idToIndex[b.Parent]
			if !ok {
				log.Printf("scene: bone %q parent id %d not found, treating as root", b.Name, b.Parent)
			} else {
				parentIndex = pi
				bindLocal = worldBind[pi].Inv().Mul4(worldBind[i])
			}
		}

		s.Joints[i] = Joint{
			Name:        b.Name,
			Id:          b.Id,
			Parent:      b.Parent,
			ParentIndex: parentIndex,
			InverseBind: worldBind[i].Inv(),
			BindLocal:   bindLocal,
		}

		s.byID[b.Id] = i
		if existing, ok := s.byName[b.Name]; ok && existing != ambiguousJoint {
			s.byName[b.Name] = ambiguousJoint
		} else if !ok {
			s.byName[b.Name] = i
		}
	}

	return s
}

// ByID resolves a POL bone id to a joint index.
func (s *Skeleton) ByID(id int32) (int, bool) {
	idx, ok := s.byID[id]
	return idx, ok
}

// ByName resolves a bone name to a joint index. A name shared by more
// than one bone is never resolved (spec.md §3 "a lookup structure must
// mark non-unique names distinctly").
func (s *Skeleton) ByName(name string) (int, bool) {
	idx, ok := s.byName[name]
	if !ok || idx == ambiguousJoint {
		return 0, false
	}
	return idx, true
}

// DetectCycle performs a BFS from every root joint and reports whether
// every joint is reachable; if not, the parent graph contains a cycle
// (spec.md §9) and the skeleton must not be used.
func (s *Skeleton) DetectCycle() bool {
	visited := make([]bool, len(s.Joints))
	queue := make([]int, 0, len(s.Joints))
	for i, j := range s.Joints {
		if j.ParentIndex == -1 {
			visited[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i, j := range s.Joints {
			if !visited[i] && j.ParentIndex == cur {
				visited[i] = true
				queue = append(queue, i)
			}
		}
	}
	for _, v := range visited {
		if !v {
			return true
		}
	}
	return false
}
