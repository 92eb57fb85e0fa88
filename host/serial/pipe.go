package serial

import (
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// PipePort is one end of an in-memory serial line. Writes block until the
// other end reads, like a UART with no buffering.
type PipePort struct {
	conn        net.Conn
	readTimeout atomic.Int64
}

// Pipe returns the two ends of an in-memory serial line. readTimeout
// applies to both ends; 0 means reads block.
func Pipe(readTimeout time.Duration) (*PipePort, *PipePort) {
	a, b := net.Pipe()
	pa, pb := &PipePort{conn: a}, &PipePort{conn: b}
	pa.SetReadTimeout(readTimeout)
	pb.SetReadTimeout(readTimeout)
	return pa, pb
}

// SetReadTimeout changes the read timeout of this end
func (p *PipePort) SetReadTimeout(d time.Duration) {
	p.readTimeout.Store(int64(d))
}

func (p *PipePort) Read(b []byte) (int, error) {
	if d := time.Duration(p.readTimeout.Load()); d > 0 {
		if err := p.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	}
	n, err := p.conn.Read(b)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, ErrTimeout
	}
	return n, err
}

func (p *PipePort) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

func (p *PipePort) Close() error {
	return p.conn.Close()
}

// Flush is a no-op: a pipe holds no buffered data
func (p *PipePort) Flush() error {
	return nil
}
