// Package overlay renders tracked and guide nodes, and ground-truth marker
// positions, onto a camera-frame image for visual inspection of a tracked
// frame.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/zhao-harry/trackdlo/camera"
)

var (
	// colorTracked is the green used for in-chain-order tracked nodes.
	colorTracked = color.RGBA{0, 255, 0, 255}
	// colorOccluded is the red used for nodes classified occluded.
	colorOccluded = color.RGBA{255, 0, 0, 255}
	// colorGroundTruth is the orange used for ground-truth marker blobs.
	colorGroundTruth = color.RGBA{255, 150, 0, 255}
)

const nodeRadius = 5
const lineWidth = 2

// Render draws nodes (projected through intrinsics) as circles connected by
// a polyline, colouring each segment green or red depending on whether
// either endpoint is in occluded, and draws groundTruth markers as orange
// circles on top of base.
func Render(base image.Image, nodes [][3]float64, occluded map[int]bool, groundTruth [][3]float64, intrinsics camera.Intrinsics) *image.RGBA {
	bounds := base.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, base, bounds.Min, draw.Src)
	width, height := bounds.Dx(), bounds.Dy()

	projected := make([]image.Point, len(nodes))
	visible := make([]bool, len(nodes))
	for i, n := range nodes {
		u, v, ok := intrinsics.Project(n[0], n[1], n[2], width, height)
		projected[i] = image.Point{X: u, Y: v}
		visible[i] = ok
	}

	for i := 0; i < len(nodes)-1; i++ {
		if !visible[i] || !visible[i+1] {
			continue
		}
		c := colorTracked
		if occluded[i] || occluded[i+1] {
			c = colorOccluded
		}
		drawLine(out, projected[i], projected[i+1], c)
	}
	for i, p := range projected {
		if !visible[i] {
			continue
		}
		c := colorTracked
		if occluded[i] {
			c = colorOccluded
		}
		drawCircle(out, p, nodeRadius, c)
	}

	for _, gt := range groundTruth {
		u, v, ok := intrinsics.Project(gt[0], gt[1], gt[2], width, height)
		if !ok {
			continue
		}
		drawCircle(out, image.Point{X: u, Y: v}, nodeRadius, colorGroundTruth)
	}

	return out
}

func drawCircle(img *image.RGBA, center image.Point, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			p := image.Point{X: center.X + dx, Y: center.Y + dy}
			if p.In(img.Bounds()) {
				img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

// drawLine is a thick Bresenham rasteriser, thickened by lineWidth/2
// pixels on either side of the primary line.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X >= b.X {
		sx = -1
	}
	if a.Y >= b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		stampThick(img, x, y, c)
		if x == b.X && y == b.Y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func stampThick(img *image.RGBA, x, y int, c color.RGBA) {
	for dy := -lineWidth / 2; dy <= lineWidth/2; dy++ {
		for dx := -lineWidth / 2; dx <= lineWidth/2; dx++ {
			p := image.Point{X: x + dx, Y: y + dy}
			if p.In(img.Bounds()) {
				img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
