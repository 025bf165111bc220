package mathutil

import (
	"math"
	"testing"
)

func TestLogSumExp(t *testing.T) {
	// log(2 + 3) = log(5)
	got := LogSumExp(Vec{math.Log(2), math.Log(3)})
	want := math.Log(5)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogSumExp(log(2), log(3)) = %f, want %f", got, want)
	}
}

func TestLogSumExpLarge(t *testing.T) {
	got := LogSumExp(Vec{1000, 1000})
	want := 1000 + math.Log(2)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogSumExp(1000, 1000) = %f, want %f", got, want)
	}
}

func TestLogSumExpWithLogZero(t *testing.T) {
	if got := LogSumExp(Vec{LogZero, LogZero}); got != LogZero {
		t.Errorf("LogSumExp(LogZero, LogZero) = %f, want LogZero", got)
	}
	if got := LogSumExp(nil); got != LogZero {
		t.Errorf("LogSumExp(nil) = %f, want LogZero", got)
	}
}

func TestSoftmax(t *testing.T) {
	src := Vec{1, 2, 3}
	dst := make(Vec, 3)
	Softmax(dst, src)

	sum := 0.0
	for _, v := range dst {
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("sum(Softmax) = %f, want 1", sum)
	}
	if !(dst[0] < dst[1] && dst[1] < dst[2]) {
		t.Errorf("Softmax not monotone: %v", dst)
	}

	big := Vec{1e4, 1e4 + 1}
	Softmax(dst[:2], big)
	if math.IsNaN(dst[0]) || math.IsNaN(dst[1]) {
		t.Errorf("Softmax overflowed: %v", dst[:2])
	}
}

func TestLogSoftmax(t *testing.T) {
	src := Vec{0, math.Log(3)}
	dst := make(Vec, 2)
	LogSoftmax(dst, src)
	if math.Abs(dst[0]-math.Log(0.25)) > 1e-10 || math.Abs(dst[1]-math.Log(0.75)) > 1e-10 {
		t.Errorf("LogSoftmax = %v, want [log .25, log .75]", dst)
	}
}
