package accel

import "github.com/board3d/board3d/types"

// Node is a flattened BVH node.
//
// For inner nodes LData and RData hold the indices of the left and right
// children. Leaves are flagged by a LData value <= 0 in which case -LData is
// the first primitive slot and RData the primitive count. The root is always
// stored at index 0 so a child index can never be 0.
type Node struct {
	Min   types.Vec3
	LData int32

	Max   types.Vec3
	RData int32
}

// Set bounding box.
func (n *Node) SetBBox(b types.BBox) {
	n.Min = b.Min
	n.Max = b.Max
}

// Get bounding box.
func (n *Node) BBox() types.BBox {
	return types.BBox{Min: n.Min, Max: n.Max}
}

// Set left and right child node indices.
func (n *Node) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Get left and right child node indices.
func (n *Node) ChildNodes() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// Set primitive slot and count.
func (n *Node) SetPrimitives(first, count uint32) {
	n.LData = -int32(first)
	n.RData = int32(count)
}

// Get primitive slot and count.
func (n *Node) Primitives() (first, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Returns true if this is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LData <= 0
}
