package core

// Kernel is the escape-time recurrence: the number of iterations before the
// orbit of z under the map with constant c leaves the radius-2 disc, capped
// at limit.
type Kernel interface {
	Iterations(z, c complex128, limit uint8) uint8
}

// JuliaKernel iterates z <- z^2 + c
type JuliaKernel struct{}

func (JuliaKernel) Iterations(z, c complex128, limit uint8) uint8 {
	re, im := real(z), imag(z)
	cre, cim := real(c), imag(c)

	n := uint8(0)
	for n < limit && re*re+im*im < 4 {
		re, im = re*re-im*im+cre, 2*re*im+cim
		n++
	}
	return n
}

// KernelFunc adapts a function to Kernel
type KernelFunc func(z, c complex128, limit uint8) uint8

func (f KernelFunc) Iterations(z, c complex128, limit uint8) uint8 {
	return f(z, c, limit)
}
