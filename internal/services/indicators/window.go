package indicators

// RollingWindow is a fixed-capacity FIFO ring buffer.
// It is not safe for concurrent use.
type RollingWindow[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

func NewRollingWindow[T any](capacity int) *RollingWindow[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingWindow[T]{buf: make([]T, capacity)}
}

// Push appends v. When the window is full the oldest element is evicted and
// returned with ok=true.
func (w *RollingWindow[T]) Push(v T) (evicted T, ok bool) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = v
		w.size++
		return evicted, false
	}
	evicted = w.buf[w.head]
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	return evicted, true
}

func (w *RollingWindow[T]) Len() int { return w.size }
func (w *RollingWindow[T]) Cap() int { return len(w.buf) }

// Items returns a copy, oldest first.
func (w *RollingWindow[T]) Items() []T {
	out := make([]T, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

func (w *RollingWindow[T]) Last() (T, bool) {
	var zero T
	if w.size == 0 {
		return zero, false
	}
	return w.buf[(w.head+w.size-1)%len(w.buf)], true
}

func (w *RollingWindow[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.head, w.size = 0, 0
}
