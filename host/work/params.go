package work

import (
	"fmt"

	"fractalink/protocol"
)

// Region is the rectangle of the complex plane mapped onto the grid. The
// top row of the grid is at ImMax.
type Region struct {
	ReMin, ReMax float64
	ImMin, ImMax float64
}

// Params are the fractal parameters of a run
type Params struct {
	CRe, CIm     float64
	IterationCap uint8
	Region       Region
}

// Validate checks that the region is not degenerate
func (p Params) Validate() error {
	if !(p.Region.ReMax > p.Region.ReMin) || !(p.Region.ImMax > p.Region.ImMin) {
		return fmt.Errorf("%w: region re [%g,%g] im [%g,%g] is empty", ErrConfiguration,
			p.Region.ReMin, p.Region.ReMax, p.Region.ImMin, p.Region.ImMax)
	}
	return nil
}

// Step returns the per-pixel coordinate step for a grid of the given size.
// The imaginary step is negative because rows go down from ImMax.
func (p Params) Step(width, height int) (dRe, dIm float64) {
	dRe = (p.Region.ReMax - p.Region.ReMin) / float64(width)
	dIm = -(p.Region.ImMax - p.Region.ImMin) / float64(height)
	return dRe, dIm
}

// Point returns the complex coordinate of pixel (x, y)
func (p Params) Point(width, height, x, y int) complex128 {
	dRe, dIm := p.Step(width, height)
	return complex(p.Region.ReMin+float64(x)*dRe, p.Region.ImMax+float64(y)*dIm)
}

// Message builds the ComputeParameters frame for a grid of the given size
func (p Params) Message(width, height int) protocol.ComputeParameters {
	dRe, dIm := p.Step(width, height)
	return protocol.ComputeParameters{
		CRe:          p.CRe,
		CIm:          p.CIm,
		DRe:          dRe,
		DIm:          dIm,
		IterationCap: p.IterationCap,
	}
}

// Descriptor builds the ChunkDescriptor frame for chunk cid
func (p Params) Descriptor(plan Plan, cid int) protocol.ChunkDescriptor {
	x, y := plan.Origin(cid)
	origin := p.Point(plan.Width, plan.Height, x, y)
	return protocol.ChunkDescriptor{
		ChunkID:  uint8(cid),
		OriginRe: real(origin),
		OriginIm: imag(origin),
		Width:    uint8(plan.ChunkWidth),
		Height:   uint8(plan.ChunkHeight),
	}
}
