package accel

import (
	"github.com/board3d/board3d/log"
	"github.com/board3d/board3d/types"
)

// The default number of primitives per leaf.
const DefaultLeafSize = 4

// Traversal stack depth; the builder never exceeds maxDepth levels.
const stackSize = 2*maxDepth + 2

// BVH is a bounding volume hierarchy container.
type BVH struct {
	prims []Primitive

	// Leaf slots referencing indices into prims.
	slots []uint32

	nodes []Node
	stats Stats
}

// Build a BVH over the given primitives. The primitive slice is retained and
// must not be modified afterwards.
func NewBVH(prims []Primitive, leafSize int) *BVH {
	bvh := &BVH{
		prims: prims,
		slots: make([]uint32, 0, len(prims)),
	}
	if len(prims) == 0 {
		return bvh
	}

	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}

	items := make([]BoundedVolume, len(prims))
	for i, p := range prims {
		items[i] = p
	}

	bvh.nodes, bvh.stats = Build(items, leafSize, func(leaf *Node, itemList []int) {
		leaf.SetPrimitives(uint32(len(bvh.slots)), uint32(len(itemList)))
		for _, index := range itemList {
			bvh.slots = append(bvh.slots, uint32(index))
		}
	}, SurfaceAreaHeuristic)

	log.New("bvh").Infof("built BVH for %d primitives: %d nodes, %d leaves, depth %d", len(prims), bvh.stats.Nodes, bvh.stats.Leaves, bvh.stats.MaxDepth)
	return bvh
}

// Get build statistics.
func (bvh *BVH) Stats() Stats {
	return bvh.stats
}

// Get the flattened node list.
func (bvh *BVH) Nodes() []Node {
	return bvh.nodes
}

func (bvh *BVH) BBox() types.BBox {
	if len(bvh.nodes) == 0 {
		return types.EmptyBBox()
	}
	return bvh.nodes[0].BBox()
}

func (bvh *BVH) Len() int {
	return len(bvh.prims)
}

func (bvh *BVH) Primitive(index int) Primitive {
	return bvh.prims[index]
}

func (bvh *BVH) Intersect(r *types.Ray, hit *HitInfo) bool {
	if len(bvh.nodes) == 0 {
		return false
	}

	var stack [stackSize]uint32
	stack[0] = 0
	top := 1
	found := false

	for top > 0 {
		top--
		nodeIndex := stack[top]
		node := &bvh.nodes[nodeIndex]

		if t0, _, ok := node.BBox().Intersect(r); !ok || t0 > hit.T {
			continue
		}

		if node.IsLeaf() {
			if bvh.intersectLeaf(r, hit, nodeIndex) {
				found = true
			}
			continue
		}

		// Visit the nearest child first
		left, right := node.ChildNodes()
		lt, _, lok := bvh.nodes[left].BBox().Intersect(r)
		rt, _, rok := bvh.nodes[right].BBox().Intersect(r)
		switch {
		case lok && rok:
			if lt <= rt {
				stack[top], stack[top+1] = right, left
			} else {
				stack[top], stack[top+1] = left, right
			}
			top += 2
		case lok:
			stack[top] = left
			top++
		case rok:
			stack[top] = right
			top++
		}
	}

	return found
}

func (bvh *BVH) IntersectNode(r *types.Ray, hit *HitInfo, node uint32) bool {
	if int(node) >= len(bvh.nodes) {
		return false
	}
	if !bvh.nodes[node].IsLeaf() {
		return bvh.Intersect(r, hit)
	}
	return bvh.intersectLeaf(r, hit, node)
}

func (bvh *BVH) intersectLeaf(r *types.Ray, hit *HitInfo, nodeIndex uint32) bool {
	first, count := bvh.nodes[nodeIndex].Primitives()
	found := false
	for _, primIndex := range bvh.slots[first : first+count] {
		if testPrimitive(bvh.prims[primIndex], int(primIndex), nodeIndex, r, hit) {
			found = true
		}
	}
	return found
}

func (bvh *BVH) IntersectP(r *types.Ray, maxDistance float32) bool {
	if len(bvh.nodes) == 0 {
		return false
	}

	var stack [stackSize]uint32
	stack[0] = 0
	top := 1

	for top > 0 {
		top--
		node := &bvh.nodes[stack[top]]
		if !node.BBox().IntersectRange(r, maxDistance) {
			continue
		}

		if node.IsLeaf() {
			first, count := node.Primitives()
			for _, primIndex := range bvh.slots[first : first+count] {
				if bvh.prims[primIndex].IntersectP(r, maxDistance) {
					return true
				}
			}
			continue
		}

		left, right := node.ChildNodes()
		stack[top], stack[top+1] = right, left
		top += 2
	}

	return false
}

// Traverse the tree once for the whole packet. A node is skipped only when
// it is missed by every ray of the packet.
func (bvh *BVH) IntersectPacket(p *types.RayPacket, hits *HitInfoPacket) bool {
	if len(bvh.nodes) == 0 {
		return false
	}

	var stack [stackSize]uint32
	stack[0] = 0
	top := 1
	found := false

	for top > 0 {
		top--
		nodeIndex := stack[top]
		node := &bvh.nodes[nodeIndex]
		bbox := node.BBox()

		var active [types.PacketSize]bool
		anyActive := false
		for i := range p.Rays {
			if t0, _, ok := bbox.Intersect(&p.Rays[i]); ok && t0 <= hits.Hits[i].T {
				active[i] = true
				anyActive = true
			}
		}
		if !anyActive {
			continue
		}

		if node.IsLeaf() {
			for i := range p.Rays {
				if active[i] && bvh.intersectLeaf(&p.Rays[i], &hits.Hits[i], nodeIndex) {
					found = true
				}
			}
			continue
		}

		left, right := node.ChildNodes()
		stack[top], stack[top+1] = right, left
		top += 2
	}

	return found
}
