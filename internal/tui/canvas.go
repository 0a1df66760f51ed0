package tui

import "strings"

// Braille cells pack 2x4 dots, unicode offset 0x2800.
var dotMask = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille-dot drawing surface with a world-coordinate
// viewport. World points in meters are projected onto a sub-pixel grid
// of (cols*2) x (rows*4) dots.
type Canvas struct {
	cols, rows             int
	minX, maxX, minY, maxY float64
	grid                   [][]rune
}

func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{cols: cols, rows: rows, grid: make([][]rune, rows)}
	for i := range c.grid {
		c.grid[i] = make([]rune, cols)
	}
	c.Clear()
	c.SetViewport(-1, 1, -1, 1)
	return c
}

func (c *Canvas) Clear() {
	for i := range c.grid {
		for j := range c.grid[i] {
			c.grid[i][j] = 0x2800
		}
	}
}

// SetViewport fixes the world rectangle mapped onto the canvas. A
// degenerate axis is padded so projection stays finite.
func (c *Canvas) SetViewport(minX, maxX, minY, maxY float64) {
	if maxX-minX < 1e-9 {
		minX, maxX = minX-0.5, maxX+0.5
	}
	if maxY-minY < 1e-9 {
		minY, maxY = minY-0.5, maxY+0.5
	}
	c.minX, c.maxX, c.minY, c.maxY = minX, maxX, minY, maxY
}

// Grow widens the viewport to include the world point, with a margin.
func (c *Canvas) Grow(x, y float64) {
	const margin = 0.5
	if x-margin < c.minX {
		c.minX = x - margin
	}
	if x+margin > c.maxX {
		c.maxX = x + margin
	}
	if y-margin < c.minY {
		c.minY = y - margin
	}
	if y+margin > c.maxY {
		c.maxY = y + margin
	}
}

func (c *Canvas) project(x, y float64) (int, int) {
	pw, ph := float64(c.cols*2), float64(c.rows*4)
	px := int((x - c.minX) / (c.maxX - c.minX) * (pw - 1))
	py := int((c.maxY - y) / (c.maxY - c.minY) * (ph - 1))
	return px, py
}

func (c *Canvas) set(px, py int) {
	if px < 0 || py < 0 {
		return
	}
	col, row := px/2, py/4
	if col >= c.cols || row >= c.rows {
		return
	}
	c.grid[row][col] |= dotMask[py%4][px%2]
}

// Point plots one world point.
func (c *Canvas) Point(x, y float64) {
	px, py := c.project(x, y)
	c.set(px, py)
}

// Dot plots a world point as a 3x3 blob so bodies stand out from trails.
func (c *Canvas) Dot(x, y float64) {
	px, py := c.project(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			c.set(px+dx, py+dy)
		}
	}
}

// Line draws a world-space segment with Bresenham over the dot grid.
func (c *Canvas) Line(x0, y0, x1, y1 float64) {
	px0, py0 := c.project(x0, y0)
	px1, py1 := c.project(x1, y1)

	dx, dy := absInt(px1-px0), absInt(py1-py0)
	sx, sy := 1, 1
	if px0 > px1 {
		sx = -1
	}
	if py0 > py1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(px0, py0)
		if px0 == px1 && py0 == py1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			px0 += sx
		}
		if e2 < dx {
			err += dx
			py0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
