package baseline

import (
	"math"
	"sort"
)

// Window is a fixed-capacity FIFO of float64 observations. Once full, each
// push overwrites the oldest value.
type Window struct {
	buf      []float64
	next     int
	capacity int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		buf:      make([]float64, 0, capacity),
		capacity: capacity,
	}
}

func (w *Window) Push(v float64) {
	if len(w.buf) < w.capacity {
		w.buf = append(w.buf, v)
	} else {
		w.buf[w.next] = v
	}
	w.next = (w.next + 1) % w.capacity
}

func (w *Window) Len() int {
	return len(w.buf)
}

func (w *Window) Cap() int {
	return w.capacity
}

// Values returns a copy of the window, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, len(w.buf))
	if len(w.buf) < w.capacity {
		return append(out, w.buf...)
	}
	out = append(out, w.buf[w.next:]...)
	return append(out, w.buf[:w.next]...)
}

// Median returns sorted[len/2]. For even lengths this is the upper of the
// two middle values; no interpolation is done.
func (w *Window) Median() (float64, bool) {
	if len(w.buf) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), w.buf...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2], true
}

// StdDev is the sample standard deviation; it needs at least two values.
func (w *Window) StdDev() (float64, bool) {
	n := len(w.buf)
	if n < 2 {
		return 0, false
	}
	var mean float64
	for _, v := range w.buf {
		mean += v
	}
	mean /= float64(n)
	var m2 float64
	for _, v := range w.buf {
		d := v - mean
		m2 += d * d
	}
	return math.Sqrt(m2 / float64(n-1)), true
}
