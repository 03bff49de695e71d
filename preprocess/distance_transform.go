package preprocess

import "math"

// Mask is a binary occupancy grid: true where a pixel belongs to the
// observed foreground (spec's B). Row-major, row index is v (image row),
// column index is u (image column).
type Mask struct {
	Width, Height int
	Bits          []bool
}

// At reports whether pixel (u, v) is set.
func (m *Mask) At(u, v int) bool {
	return m.Bits[v*m.Width+u]
}

// distanceToForeground computes, for every pixel, its Euclidean distance to
// the nearest foreground pixel — the Go equivalent of
// `scipy.ndimage.distance_transform_edt(255 - bmask)` in spec §4.2, since
// that call measures distance to the nearest zero of its argument, i.e. to
// the nearest pixel where bmask is set. Implemented as the classic
// Felzenszwalt & Huttenlocher two-pass 1D lower-envelope squared distance
// transform; no example in the pack ships a distance-transform dependency,
// so this is hand-rolled rather than adopted from the corpus.
func distanceToForeground(m *Mask) [][]float64 {
	const inf = math.MaxFloat64 / 4

	f := make([][]float64, m.Height)
	for v := 0; v < m.Height; v++ {
		f[v] = make([]float64, m.Width)
		for u := 0; u < m.Width; u++ {
			if m.At(u, v) {
				f[v][u] = 0
			} else {
				f[v][u] = inf
			}
		}
	}

	// Column-wise 1D transform.
	col := make([]float64, m.Height)
	for u := 0; u < m.Width; u++ {
		for v := 0; v < m.Height; v++ {
			col[v] = f[v][u]
		}
		out := transform1D(col)
		for v := 0; v < m.Height; v++ {
			f[v][u] = out[v]
		}
	}
	// Row-wise 1D transform.
	for v := 0; v < m.Height; v++ {
		out := transform1D(f[v])
		f[v] = out
	}

	for v := 0; v < m.Height; v++ {
		for u := 0; u < m.Width; u++ {
			f[v][u] = math.Sqrt(f[v][u])
		}
	}
	return f
}

// transform1D is the lower-envelope-of-parabolas squared distance
// transform for one row/column of squared distances.
func transform1D(f []float64) []float64 {
	n := len(f)
	d := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)
	const inf = math.MaxFloat64 / 4

	k := 0
	v[0] = 0
	z[0] = -inf
	z[1] = inf

	for q := 1; q < n; q++ {
		s := intersect(f, v[k], q)
		for s <= z[k] {
			k--
			s = intersect(f, v[k], q)
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = inf
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
	return d
}

func intersect(f []float64, p, q int) float64 {
	fp, fq := f[p], f[q]
	pf, qf := float64(p), float64(q)
	return ((fq + qf*qf) - (fp + pf*pf)) / (2*qf - 2*pf)
}
