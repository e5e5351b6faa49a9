package accel

import (
	"math"
	"time"

	"github.com/board3d/board3d/log"
	"github.com/board3d/board3d/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis

	// The builder will not attempt to calculate split candidates
	// if the node bbox along an axis is less than this threshold.
	minSideLength float32 = 1e-5

	// Number of evenly spaced split candidates evaluated per axis.
	splitCandidates = 32

	// Work lists smaller than this are scored on the calling goroutine.
	minParallelItems = 256

	// Safety net against degenerate inputs (e.g. many coincident centers).
	maxDepth = 64
)

var (
	// A split scoring strategy that uses the surface area heuristic (SAH).
	SurfaceAreaHeuristic = surfaceAreaHeuristic{}
)

// The BoundedVolume interface is implemented by all items that can be
// partitioned by the BVH builder.
type BoundedVolume interface {
	BBox() types.BBox
	Center() types.Vec3
}

// A callback that is called whenever the BVH builder creates a new leaf.
type LeafCallback func(leaf *Node, itemList []int)

// A split scoring strategy.
type ScoreStrategy interface {
	// Calculate a score for splitting workList at splitPoint along a particular Axis.
	ScoreSplit(items []BoundedVolume, workList []int, splitAxis Axis, splitPoint float32) (leftCount, rightCount int, score float32)

	// Calculate a score for all items in workList.
	ScorePartition(items []BoundedVolume, workList []int) (score float32)
}

type splitScore struct {
	axis       Axis
	splitPoint float32

	leftCount, rightCount int
	score                 float32
}

// Build statistics.
type Stats struct {
	Items     int
	Nodes     int
	Leaves    int
	MaxDepth  int
	BuildTime time.Duration
}

type builder struct {
	logger log.Logger

	items []BoundedVolume

	// Bvh nodes stored as a contiguous list
	nodes []Node

	// A callback invoked to set up BVH leafs.
	leafCb LeafCallback

	// The maximum number of items that can be stored in a leaf without
	// attempting a split.
	minLeafItems int

	// A channel for receiving score results.
	scoreChan chan splitScore

	// The split scoring strategy to use.
	scoreStrategy ScoreStrategy

	stats Stats
}

// Construct a BVH from a set of bounded volumes. The leaf callback receives
// the indices (into items) of the items assigned to each leaf.
//
// The minLeafItems param specifies the item count at or below which the
// builder emits a leaf without evaluating splits. A leaf is also emitted
// when no split improves the SAH score of the node.
func Build(items []BoundedVolume, minLeafItems int, leafCb LeafCallback, scoreStrategy ScoreStrategy) ([]Node, Stats) {
	b := &builder{
		logger:        log.New("bvh builder"),
		items:         items,
		nodes:         make([]Node, 0, 2*len(items)/maxInt(minLeafItems, 1)+1),
		leafCb:        leafCb,
		minLeafItems:  maxInt(minLeafItems, 1),
		scoreChan:     make(chan splitScore),
		scoreStrategy: scoreStrategy,
		stats: Stats{
			Items: len(items),
		},
	}

	start := time.Now()
	workList := make([]int, len(items))
	for i := range workList {
		workList[i] = i
	}
	b.partition(workList, 0)
	b.stats.BuildTime = time.Since(start)
	b.logger.Debugf(
		"BVH tree build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d",
		b.stats.BuildTime.Nanoseconds()/1e6,
		b.stats.MaxDepth, b.stats.Nodes, b.stats.Leaves,
	)
	return b.nodes, b.stats
}

// Partition worklist and return node index.
func (b *builder) partition(workList []int, depth int) uint32 {
	if depth > b.stats.MaxDepth {
		b.stats.MaxDepth = depth
	}

	var node Node
	bbox := types.EmptyBBox()
	for _, index := range workList {
		bbox.Union(b.items[index].BBox())
	}
	node.SetBBox(bbox)

	// Do we have enough items for partitioning? If not create a leaf
	if len(workList) <= b.minLeafItems || depth >= maxDepth {
		return b.createLeaf(&node, workList)
	}

	var bestScore float32 = b.scoreStrategy.ScorePartition(b.items, workList)
	var bestSplit *splitScore = nil

	candidates := make([]splitScore, 0, 3*splitCandidates)
	side := bbox.Extent()
	for axis := XAxis; axis <= ZAxis; axis++ {
		// Skip axis if bbox dimension is too small
		if side[axis] < minSideLength {
			continue
		}

		splitStep := side[axis] / float32(splitCandidates+1)
		for i := 1; i <= splitCandidates; i++ {
			candidates = append(candidates, splitScore{axis: axis, splitPoint: bbox.Min[axis] + splitStep*float32(i)})
		}
	}

	if len(workList) < minParallelItems {
		for i := range candidates {
			c := &candidates[i]
			c.leftCount, c.rightCount, c.score = b.scoreStrategy.ScoreSplit(b.items, workList, c.axis, c.splitPoint)
		}
	} else {
		// Run split tests in parallel
		for _, c := range candidates {
			go func(axis Axis, splitPoint float32) {
				lCount, rCount, score := b.scoreStrategy.ScoreSplit(b.items, workList, axis, splitPoint)
				b.scoreChan <- splitScore{
					axis:       axis,
					splitPoint: splitPoint,

					leftCount:  lCount,
					rightCount: rCount,
					score:      score,
				}
			}(c.axis, c.splitPoint)
		}
		for i := range candidates {
			candidates[i] = <-b.scoreChan
		}
	}

	// Pick the best split; ties are resolved by axis and split point so
	// that builds are deterministic.
	for i := range candidates {
		c := &candidates[i]
		if c.score < bestScore || (bestSplit != nil && c.score == bestScore && lessSplit(c, bestSplit)) {
			bestScore = c.score
			bestSplit = c
		}
	}

	// If we can't find a split that improves the current node score create a leaf
	if bestSplit == nil {
		return b.createLeaf(&node, workList)
	}

	// split work list into two sets
	leftWorkList := make([]int, 0, bestSplit.leftCount)
	rightWorkList := make([]int, 0, bestSplit.rightCount)
	for _, index := range workList {
		center := b.items[index].Center()
		if center[bestSplit.axis] < bestSplit.splitPoint {
			leftWorkList = append(leftWorkList, index)
		} else {
			rightWorkList = append(rightWorkList, index)
		}
	}

	// Add node to list
	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.stats.Nodes++

	// Partition children and update node indices
	leftNodeIndex := b.partition(leftWorkList, depth+1)
	rightNodeIndex := b.partition(rightWorkList, depth+1)
	b.nodes[nodeIndex].SetChildNodes(leftNodeIndex, rightNodeIndex)

	return uint32(nodeIndex)
}

// Setup the given node item as a leaf node containing all items in the work list.
// Returns the index to the node in the bvh node array.
func (b *builder) createLeaf(node *Node, workList []int) uint32 {
	b.leafCb(node, workList)

	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, *node)

	b.stats.Nodes++
	b.stats.Leaves++
	return uint32(nodeIndex)
}

func lessSplit(a, b *splitScore) bool {
	if a.axis != b.axis {
		return a.axis < b.axis
	}
	return a.splitPoint < b.splitPoint
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// A score implementation that uses surface area heuristic for calculating split scores.
type surfaceAreaHeuristic struct{}

// Score a BVH split based on the surface area heuristic. The SAH calculates
// the split score using the formula (lower score is better):
//
// left count * left BBOX area + rightCount * right BBOX area.
//
// SAH avoids splits that generate empty partitions by assigning the worst
// possible score (MaxFloat32) when it enounters such cases.
func (h surfaceAreaHeuristic) ScoreSplit(items []BoundedVolume, workList []int, axis Axis, splitPoint float32) (leftCount, rightCount int, score float32) {
	left := types.EmptyBBox()
	right := types.EmptyBBox()

	for _, index := range workList {
		item := items[index]
		if item.Center()[axis] < splitPoint {
			leftCount++
			left.Union(item.BBox())
		} else {
			rightCount++
			right.Union(item.BBox())
		}
	}

	// Make sure that we don't generate empty partitions
	if leftCount == 0 || rightCount == 0 {
		return leftCount, rightCount, math.MaxFloat32
	}

	score = float32(leftCount)*left.SurfaceArea() + float32(rightCount)*right.SurfaceArea()
	return leftCount, rightCount, score
}

// Calculate score for a partitioned workList using formula:
// count * BBOX area
//
// If the workList is empty, then this method returns the worst possible
// score (MaxFloat32).
func (h surfaceAreaHeuristic) ScorePartition(items []BoundedVolume, workList []int) (score float32) {
	if len(workList) == 0 {
		return math.MaxFloat32
	}

	bbox := types.EmptyBBox()
	for _, index := range workList {
		bbox.Union(items[index].BBox())
	}
	return float32(len(workList)) * bbox.SurfaceArea()
}
