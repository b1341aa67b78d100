package wire

import (
	"io"
)

const terminator = 0x00

// recvChunkSize bounds a single underlying read.
const recvChunkSize = 4096

// Codec translates between a byte-oriented stream and the protocol's
// primitive frames: bytes, zero-terminated strings, and raw byte runs.
// It owns no synchronization of its own — Session serializes access
// with a session-wide mutex.
type Codec struct {
	rw  io.ReadWriter
	in  buffer
	out buffer
}

// NewCodec wraps rw (a net.Conn or tls.Conn) with the protocol's framing
// primitives.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{rw: rw}
}

// SendByte buffers a single octet for sending.
func (c *Codec) SendByte(b byte) {
	c.out.put([]byte{b})
}

// SendString buffers s as UTF-8 followed by a zero terminator.
func (c *Codec) SendString(s string) {
	c.out.put([]byte(s))
	c.out.put([]byte{terminator})
}

// SendBytes buffers raw bytes with no terminator and no escaping.
// Callers that need a zero byte to follow (e.g. PutBinary's trailing
// terminator) must send it explicitly with SendByte.
func (c *Codec) SendBytes(p []byte) {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.out.put(cp)
}

// Flush drains the outbound buffer to the writer in one call.
func (c *Codec) Flush() error {
	if c.out.length == 0 {
		return nil
	}
	p := c.out.get(c.out.length)
	_, err := c.rw.Write(p)
	return err
}

// fill reads at least one more chunk from the underlying reader into
// the input buffer.
func (c *Codec) fill() error {
	chunk := make([]byte, recvChunkSize)
	n, err := c.rw.Read(chunk)
	if n > 0 {
		c.in.put(chunk[:n])
	}
	if n == 0 && err == nil {
		err = io.ErrNoProgress
	}
	return err
}

// RecvByte returns the next octet, refilling from the reader as needed.
func (c *Codec) RecvByte() (byte, error) {
	for c.in.length < 1 {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	return c.in.get(1)[0], nil
}

// RecvBytes returns exactly n raw bytes.
func (c *Codec) RecvBytes(n int) ([]byte, error) {
	for c.in.length < n {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	return c.in.get(n), nil
}

// RecvString returns the UTF-8 bytes up to (not including) the next
// zero byte, consuming the terminator.
func (c *Codec) RecvString() (string, error) {
	for !c.in.contains(terminator) {
		if err := c.fill(); err != nil {
			return "", err
		}
	}
	idx := c.in.index(terminator)
	s := c.in.get(idx)
	c.in.get(1) // terminator
	return string(s), nil
}

// AreBuffersEmpty reports whether both protocol buffers are empty, the
// invariant that must hold between every request/response pair.
func (c *Codec) AreBuffersEmpty() bool {
	return c.in.length == 0 && c.out.length == 0
}

// Desync returns a diagnostic description of any leftover buffer
// content, for inclusion in a ProtocolError.
func (c *Codec) Desync() string {
	return "in=" + string(c.in.bytes()) + " out=" + string(c.out.bytes())
}
