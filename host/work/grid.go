package work

// Grid is the host's canvas: one iteration count per pixel, row-major.
// It also counts writes per cell so a run can be checked for gaps and
// duplicates.
type Grid struct {
	Width  int
	Height int
	Counts []uint8

	writes []uint16
}

// NewGrid creates a zeroed grid
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Counts: make([]uint8, width*height),
		writes: make([]uint16, width*height),
	}
}

// Set stores the count for one pixel
func (g *Grid) Set(x, y int, n uint8) {
	i := y*g.Width + x
	g.Counts[i] = n
	g.writes[i]++
}

// At returns the count of one pixel
func (g *Grid) At(x, y int) uint8 {
	return g.Counts[y*g.Width+x]
}

// Writes returns how many times a pixel was set since the last Clear
func (g *Grid) Writes(x, y int) int {
	return int(g.writes[y*g.Width+x])
}

// Written returns how many distinct pixels were set since the last Clear
func (g *Grid) Written() int {
	n := 0
	for _, w := range g.writes {
		if w > 0 {
			n++
		}
	}
	return n
}

// Clear zeroes every pixel and write counter
func (g *Grid) Clear() {
	clear(g.Counts)
	clear(g.writes)
}

// CopyFrom replaces the contents with another grid of the same size
func (g *Grid) CopyFrom(src *Grid) {
	copy(g.Counts, src.Counts)
	copy(g.writes, src.writes)
}

// Equal reports whether two grids hold the same counts
func (g *Grid) Equal(other *Grid) bool {
	if g.Width != other.Width || g.Height != other.Height {
		return false
	}
	for i := range g.Counts {
		if g.Counts[i] != other.Counts[i] {
			return false
		}
	}
	return true
}
