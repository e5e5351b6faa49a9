package tracer

import (
	"time"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/types"
	"golang.org/x/sync/errgroup"
)

// Render a coarse preview while the view is moving. A single ray is cast per
// preview cell; rays of neighboring cells are traversed together as a packet
// and no secondary rays are cast.
func (t *Tracer) renderPreview() error {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(t.settings.Raytracing.WorkerCount())
	for i := 0; i < t.previewBlocks.Len(); i++ {
		blockIndex := i
		g.Go(func() error {
			t.previewBlock(blockIndex)
			return nil
		})
	}
	err := g.Wait()

	t.stats.TraceTime = time.Since(start)
	return err
}

// Trace a preview block as a single packet of PacketDim x PacketDim cells.
func (t *Tracer) previewBlock(blockIndex int) {
	block := t.previewBlocks.Block(blockIndex)
	cell := t.opts.PreviewCell

	var (
		packet types.RayPacket
		hits   accel.HitInfoPacket
	)
	for cy := 0; cy < types.PacketDim; cy++ {
		for cx := 0; cx < types.PacketDim; cx++ {
			px := minInt(block.Min.X+cx*cell+cell/2, t.width-1)
			py := minInt(block.Min.Y+cy*cell+cell/2, t.height-1)
			packet.Rays[cx+cy*types.PacketDim] = t.camera.MakeRay(float32(px)+0.5, float32(py)+0.5)
		}
	}
	hits.Reset()
	t.scene.Accelerator.IntersectPacket(&packet, &hits)
	t.primaryRays.Add(types.PacketSize)

	for cy := 0; cy < types.PacketDim; cy++ {
		y0 := block.Min.Y + cy*cell
		if y0 >= block.Max.Y {
			break
		}
		for cx := 0; cx < types.PacketDim; cx++ {
			x0 := block.Min.X + cx*cell
			if x0 >= block.Max.X {
				break
			}

			index := cx + cy*types.PacketDim
			bg := t.background(minInt(y0+cell/2, t.height-1))
			c := bg
			if hit := &hits.Hits[index]; hit.Valid() {
				c = t.shadeHit(bg, &packet.Rays[index], hit, 0, nil).color.Clamp(0, 1)
			}
			t.fillCell(x0, y0, minInt(x0+cell, block.Max.X), minInt(y0+cell, block.Max.Y), c.Vec4(1))
		}
	}
}

func (t *Tracer) fillCell(x0, y0, x1, y1 int, c types.Vec4) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			t.setPixel(x, y, c)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
