package session

// DefaultPrebufferBytes bounds the audio held while the model loads: 384 KiB,
// about 12 s of 16 kHz mono PCM16.
const DefaultPrebufferBytes = 384 * 1024

// Prebuffer is a bounded FIFO byte queue. When a write exceeds the bound the
// oldest bytes are evicted, in whole samples. It is not safe for concurrent
// use.
type Prebuffer struct {
	buf     []byte
	limit   int
	dropped int64
}

// NewPrebuffer returns a prebuffer holding at most limit bytes. limit is
// rounded down to whole samples; limit <= 0 selects [DefaultPrebufferBytes].
func NewPrebuffer(limit int) *Prebuffer {
	if limit <= 0 {
		limit = DefaultPrebufferBytes
	}
	limit &^= 1
	return &Prebuffer{limit: limit}
}

// Write appends b and returns how many bytes were evicted to stay within the
// bound.
func (p *Prebuffer) Write(b []byte) int {
	if len(b) >= p.limit {
		dropped := len(p.buf) + len(b) - p.limit
		p.buf = append(p.buf[:0], b[len(b)-p.limit:]...)
		p.dropped += int64(dropped)
		return dropped
	}
	p.buf = append(p.buf, b...)
	over := len(p.buf) - p.limit
	if over <= 0 {
		return 0
	}
	over += over & 1
	n := copy(p.buf, p.buf[over:])
	p.buf = p.buf[:n]
	p.dropped += int64(over)
	return over
}

// Len returns the number of buffered bytes.
func (p *Prebuffer) Len() int { return len(p.buf) }

// Dropped returns the total number of evicted bytes.
func (p *Prebuffer) Dropped() int64 { return p.dropped }

// Drain returns the buffered bytes in arrival order and empties the buffer.
func (p *Prebuffer) Drain() []byte {
	out := p.buf
	p.buf = nil
	return out
}
