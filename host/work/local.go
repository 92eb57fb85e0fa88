package work

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fractalink/core"
)

// RenderCPU computes the whole grid on the host with the device's kernel
// and exports it. The device is not involved.
func (s *Scheduler) RenderCPU() error {
	if s.state.Running() {
		s.log.Warn("cpu render refused", zap.Error(ErrRunInFlight))
		return ErrRunInFlight
	}
	if err := s.plan.Validate(); err != nil {
		return err
	}
	if err := s.params.Validate(); err != nil {
		return err
	}

	start := time.Now()
	Render(s.grid, s.plan, s.params, core.JuliaKernel{})
	s.log.Info("cpu render complete",
		zap.Stringer("plan", s.plan),
		zap.Duration("elapsed", time.Since(start)))
	return s.Export()
}

// Render fills g by evaluating k at every pixel. Coordinates are stepped
// from each chunk origin exactly as the device does, so both produce the
// same counts.
func Render(g *Grid, plan Plan, p Params, k core.Kernel) {
	c := complex(p.CRe, p.CIm)
	dRe, dIm := p.Step(plan.Width, plan.Height)
	for cid := 0; cid < plan.ChunkCount(); cid++ {
		d := p.Descriptor(plan, cid)
		ox, oy := plan.Origin(cid)
		for y := 0; y < plan.ChunkHeight; y++ {
			for x := 0; x < plan.ChunkWidth; x++ {
				z := complex(d.OriginRe+float64(x)*dRe, d.OriginIm+float64(y)*dIm)
				g.Set(ox+x, oy+y, k.Iterations(z, c, p.IterationCap))
			}
		}
	}
}

// Set changes one setting by name. Geometry changes reallocate the grids.
func (s *Scheduler) Set(key, value string) error {
	if s.state.Running() {
		s.log.Warn("setting not changed", zap.String("key", key), zap.Error(ErrRunInFlight))
		return ErrRunInFlight
	}

	key = strings.ToLower(strings.TrimSpace(key))
	plan := s.plan
	params := s.params

	var err error
	switch key {
	case "c_re", "cre":
		params.CRe, err = strconv.ParseFloat(value, 64)
	case "c_im", "cim":
		params.CIm, err = strconv.ParseFloat(value, 64)
	case "re_min":
		params.Region.ReMin, err = strconv.ParseFloat(value, 64)
	case "re_max":
		params.Region.ReMax, err = strconv.ParseFloat(value, 64)
	case "im_min":
		params.Region.ImMin, err = strconv.ParseFloat(value, 64)
	case "im_max":
		params.Region.ImMax, err = strconv.ParseFloat(value, 64)
	case "iterations", "iter", "n":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 8)
		params.IterationCap = uint8(n)
	case "width":
		plan.Width, err = strconv.Atoi(value)
	case "height":
		plan.Height, err = strconv.Atoi(value)
	case "chunk_width":
		plan.ChunkWidth, err = strconv.Atoi(value)
	case "chunk_height":
		plan.ChunkHeight, err = strconv.Atoi(value)
	case "export":
		var on bool
		on, err = strconv.ParseBool(value)
		if err == nil {
			s.SetExport(on)
			s.log.Info("export setting changed", zap.Bool("export", s.export))
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown setting %q", ErrConfiguration, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrConfiguration, key, value, err)
	}

	if plan != s.plan {
		// the plan is validated when a run starts, not here
		s.setPlan(plan)
	}
	s.params = params
	s.paramsDirty = true
	s.log.Info("setting changed", zap.String("key", key), zap.String("value", value))
	return nil
}
