package tracer

import (
	"image"
	"sort"
)

// BlockList partitions a frame into square blocks ordered along a Morton
// (Z-order) curve so that consecutive blocks are spatially close.
type BlockList struct {
	blockSize int
	blocks    []image.Rectangle
}

// Create a block list covering a width x height frame. Blocks at the right
// and bottom edges are clipped to the frame.
func NewBlockList(width, height, blockSize int) *BlockList {
	if blockSize < 1 {
		blockSize = 1
	}
	bl := &BlockList{blockSize: blockSize}
	if width <= 0 || height <= 0 {
		return bl
	}

	cols := (width + blockSize - 1) / blockSize
	rows := (height + blockSize - 1) / blockSize

	type entry struct {
		code uint32
		rect image.Rectangle
	}
	entries := make([]entry, 0, cols*rows)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			rect := image.Rect(bx*blockSize, by*blockSize, (bx+1)*blockSize, (by+1)*blockSize)
			entries = append(entries, entry{
				code: mortonEncode(uint32(bx), uint32(by)),
				rect: rect.Intersect(image.Rect(0, 0, width, height)),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].code < entries[j].code })

	bl.blocks = make([]image.Rectangle, len(entries))
	for i, e := range entries {
		bl.blocks[i] = e.rect
	}
	return bl
}

// Get the number of blocks.
func (bl *BlockList) Len() int {
	return len(bl.blocks)
}

// Get the block at index.
func (bl *BlockList) Block(index int) image.Rectangle {
	return bl.blocks[index]
}

// Get the (unclipped) block side.
func (bl *BlockList) BlockSize() int {
	return bl.blockSize
}

// Interleave the lower 16 bits of x and y.
func mortonEncode(x, y uint32) uint32 {
	return spreadBits(x) | spreadBits(y)<<1
}

func spreadBits(v uint32) uint32 {
	v &= 0x0000ffff
	v = (v | (v << 8)) & 0x00ff00ff
	v = (v | (v << 4)) & 0x0f0f0f0f
	v = (v | (v << 2)) & 0x33333333
	v = (v | (v << 1)) & 0x55555555
	return v
}
