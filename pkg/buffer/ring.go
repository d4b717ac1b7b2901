package buffer

// Ring is a fixed-capacity byte ring buffer that overwrites the oldest
// data when full. It keeps a sliding window of the most recent bytes.
//
// The backing array is allocated once at construction; Append never
// allocates. Ring is not safe for concurrent use: each session owns its
// preroll buffer and touches it only from its own worker.
type Ring struct {
	buf        []byte
	head, tail int64
}

// NewRing creates a Ring with the given capacity in bytes.
// It panics if capacity is not positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("buffer: ring capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Append writes p into the ring, evicting the oldest bytes as needed so
// that the most recent Cap() bytes are always retained. It handles
// wrap-around with at most two copies per region.
func (r *Ring) Append(p []byte) {
	size := int64(len(r.buf))

	// Only the trailing Cap() bytes of p can survive; skip the rest and
	// account for them as if they passed through the window.
	if int64(len(p)) > size {
		skip := int64(len(p)) - size
		r.head += skip
		r.tail += skip
		p = p[skip:]
	}

	// Evict from the head whatever will not fit.
	if over := (r.tail - r.head) + int64(len(p)) - size; over > 0 {
		r.head += over
	}

	tail := int(r.tail % size)
	n := copy(r.buf[tail:], p)
	copy(r.buf, p[n:])
	r.tail += int64(len(p))
}

// Snapshot returns a freshly allocated copy of the live window in time
// order, oldest byte first. The returned slice is independent of the
// ring; later Appends do not mutate it.
func (r *Ring) Snapshot() []byte {
	count := int(r.tail - r.head)
	out := make([]byte, count)
	head := int(r.head % int64(len(r.buf)))
	n := copy(out, r.buf[head:])
	if n < count {
		copy(out[n:], r.buf[:count-n])
	}
	return out
}

// Tail returns a copy of the most recent n bytes in time order.
// If fewer than n bytes are buffered, the whole window is returned.
func (r *Ring) Tail(n int) []byte {
	snap := r.Snapshot()
	if n >= len(snap) {
		return snap
	}
	return snap[len(snap)-n:]
}

// Reset discards all buffered data. The backing array is retained.
func (r *Ring) Reset() {
	r.head = 0
	r.tail = 0
}

// Len returns the number of bytes currently buffered.
func (r *Ring) Len() int {
	return int(r.tail - r.head)
}

// Cap returns the fixed capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.buf)
}
