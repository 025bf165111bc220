package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// LogSumExp returns log(sum(exp(x))) computed against the maximum element.
func LogSumExp(x Vec) float64 {
	if len(x) == 0 {
		return LogZero
	}
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	if m <= LogZero {
		return LogZero
	}
	sum := 0.0
	for _, v := range x {
		sum += math.Exp(v - m)
	}
	return m + math.Log(sum)
}

// LogSoftmax stores log(softmax(src)) in dst.
func LogSoftmax(dst, src Vec) {
	lse := LogSumExp(src)
	for i, v := range src {
		dst[i] = v - lse
	}
}

// Softmax stores softmax(src) in dst. The row maximum is subtracted before exponentiation.
func Softmax(dst, src Vec) {
	if len(src) == 0 {
		return
	}
	m := src[0]
	for _, v := range src[1:] {
		if v > m {
			m = v
		}
	}
	sum := 0.0
	for i, v := range src {
		e := math.Exp(v - m)
		dst[i] = e
		sum += e
	}
	for i := range dst {
		dst[i] /= sum
	}
}
