package mathutil

// Vec is a float64 vector.
type Vec = []float64

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// NewMat creates a rows x cols matrix initialized to zero.
// Rows share one contiguous backing array.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// NewVec creates a vector of length n initialized to zero.
func NewVec(n int) Vec {
	return make(Vec, n)
}

// DotVec returns the dot product of a and b.
func DotVec(a, b Vec) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// AddVec stores a+b in dst.
func AddVec(dst, a, b Vec) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// AxpyVec stores dst + alpha*x in dst.
func AxpyVec(dst Vec, alpha float64, x Vec) {
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}

// Argmax returns the index of the first maximum of v, or -1 for an empty vector.
func Argmax(v Vec) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Cols returns the column count of m, or 0 for an empty matrix.
func Cols(m Mat) int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Flatten copies m into a single row-major slice.
func Flatten(m Mat) []float64 {
	cols := Cols(m)
	out := make([]float64, 0, len(m)*cols)
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// Unflatten views data as a rows x cols matrix without copying.
func Unflatten(data []float64, rows, cols int) Mat {
	m := make(Mat, rows)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// ConcatCols returns [a | b] row by row. a and b must have the same number of rows.
func ConcatCols(a, b Mat) Mat {
	out := NewMat(len(a), Cols(a)+Cols(b))
	for i := range out {
		copy(out[i], a[i])
		copy(out[i][len(a[i]):], b[i])
	}
	return out
}

// CloneMat returns a deep copy of m.
func CloneMat(m Mat) Mat {
	return Unflatten(Flatten(m), len(m), Cols(m))
}
