// Package blas wraps the gonum BLAS routines used by the forward layers.
package blas

import (
	gblas "gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Dgemm performs C = alpha*op(A)*op(B) + beta*C.
// All matrices are row-major. op(X) = X if trans=false, X^T if trans=true.
// A is (m x k) or (k x m) if transA, B is (k x n) or (n x k) if transB, C is (m x n).
func Dgemm(transA, transB bool, m, n, k int,
	alpha float64, a []float64, lda int,
	b []float64, ldb int,
	beta float64, c []float64, ldc int) {

	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		for i := 0; i < m; i++ {
			row := c[i*ldc : i*ldc+n]
			for j := range row {
				row[j] *= beta
			}
		}
		return
	}
	ar, ac := m, k
	if transA {
		ar, ac = k, m
	}
	br, bc := k, n
	if transB {
		br, bc = n, k
	}
	blas64.Gemm(trans(transA), trans(transB), alpha,
		blas64.General{Rows: ar, Cols: ac, Stride: lda, Data: a},
		blas64.General{Rows: br, Cols: bc, Stride: ldb, Data: b},
		beta,
		blas64.General{Rows: m, Cols: n, Stride: ldc, Data: c})
}

// Dgemv performs y = alpha*A*x + beta*y for a row-major (m x n) matrix A.
func Dgemv(m, n int, alpha float64, a []float64, lda int, x []float64, beta float64, y []float64) {
	if m == 0 {
		return
	}
	blas64.Gemv(gblas.NoTrans, alpha,
		blas64.General{Rows: m, Cols: n, Stride: lda, Data: a},
		blas64.Vector{N: n, Inc: 1, Data: x},
		beta,
		blas64.Vector{N: m, Inc: 1, Data: y})
}

func trans(t bool) gblas.Transpose {
	if t {
		return gblas.Trans
	}
	return gblas.NoTrans
}
