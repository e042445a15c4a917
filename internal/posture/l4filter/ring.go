package l4filter

// ring is a bounded FIFO of float64 values. The oldest entry is evicted when
// a push would exceed capacity.
type ring struct {
	buf   []float64
	start int
	n     int
}

func newRing(size int) ring {
	return ring{buf: make([]float64, size)}
}

func (r *ring) Len() int { return r.n }

func (r *ring) Cap() int { return len(r.buf) }

func (r *ring) Push(v float64) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// At returns the i-th entry, oldest first.
func (r *ring) At(i int) float64 {
	return r.buf[(r.start+i)%len(r.buf)]
}

// AppendTo appends the contents oldest first.
func (r *ring) AppendTo(dst []float64) []float64 {
	for i := 0; i < r.n; i++ {
		dst = append(dst, r.At(i))
	}
	return dst
}

func (r *ring) Clear() {
	r.start, r.n = 0, 0
}

// Resize changes capacity, keeping the most recent entries.
func (r *ring) Resize(size int) {
	if size == len(r.buf) {
		return
	}
	vals := r.AppendTo(nil)
	if len(vals) > size {
		vals = vals[len(vals)-size:]
	}
	*r = newRing(size)
	for _, v := range vals {
		r.Push(v)
	}
}
