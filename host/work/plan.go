package work

import "fmt"

// Wire limits on chunk geometry
const (
	MaxChunks    = 256 // chunk ids are 8 bits
	MaxChunkSide = 255 // chunk width and height are 8 bits
)

// Plan splits a grid into equal chunks numbered in raster order, left to
// right then top to bottom
type Plan struct {
	Width       int
	Height      int
	ChunkWidth  int
	ChunkHeight int
}

// Validate checks that the chunks tile the grid exactly and fit on the wire
func (p Plan) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: grid %dx%d is empty", ErrConfiguration, p.Width, p.Height)
	case p.ChunkWidth <= 0 || p.ChunkHeight <= 0:
		return fmt.Errorf("%w: chunk %dx%d is empty", ErrConfiguration, p.ChunkWidth, p.ChunkHeight)
	case p.ChunkWidth > MaxChunkSide || p.ChunkHeight > MaxChunkSide:
		return fmt.Errorf("%w: chunk %dx%d exceeds %d pixels per side",
			ErrConfiguration, p.ChunkWidth, p.ChunkHeight, MaxChunkSide)
	case p.Width%p.ChunkWidth != 0 || p.Height%p.ChunkHeight != 0:
		return fmt.Errorf("%w: grid %dx%d is not divisible by chunk %dx%d",
			ErrConfiguration, p.Width, p.Height, p.ChunkWidth, p.ChunkHeight)
	case p.ChunkCount() > MaxChunks:
		return fmt.Errorf("%w: %d chunks exceed the limit of %d",
			ErrConfiguration, p.ChunkCount(), MaxChunks)
	}
	return nil
}

// ChunkCount returns the number of chunks in the grid
func (p Plan) ChunkCount() int {
	if p.ChunkWidth <= 0 || p.ChunkHeight <= 0 {
		return 0
	}
	return (p.Width * p.Height) / (p.ChunkWidth * p.ChunkHeight)
}

// ChunksPerRow returns how many chunks span the grid horizontally
func (p Plan) ChunksPerRow() int {
	return p.Width / p.ChunkWidth
}

// Origin returns the top-left pixel of chunk cid
func (p Plan) Origin(cid int) (x, y int) {
	perRow := p.ChunksPerRow()
	return (cid % perRow) * p.ChunkWidth, (cid / perRow) * p.ChunkHeight
}

// Pixels returns the number of pixels in one chunk
func (p Plan) Pixels() int {
	return p.ChunkWidth * p.ChunkHeight
}

func (p Plan) String() string {
	return fmt.Sprintf("%dx%d/%dx%d", p.Width, p.Height, p.ChunkWidth, p.ChunkHeight)
}
