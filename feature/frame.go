package feature

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PreEmphasize applies y[n] = x[n] - alpha*x[n-1].
func PreEmphasize(samples []float64, alpha float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]float64, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = samples[i] - alpha*samples[i-1]
	}
	return out
}

// NumFrames returns how many whole frames of frameLen samples, advanced by
// shift, fit in n samples.
func NumFrames(n, frameLen, shift int) int {
	if n < frameLen || frameLen <= 0 || shift <= 0 {
		return 0
	}
	return 1 + (n-frameLen)/shift
}

// Hamming returns an n-point Hamming window.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// spectrum computes windowed power spectra of fixed-size frames. It holds
// scratch buffers and is not safe for concurrent use.
type spectrum struct {
	fft    *fourier.FFT
	window []float64
	buf    []float64
	coeffs []complex128
	power  []float64
}

func newSpectrum(frameLen, fftSize int) *spectrum {
	return &spectrum{
		fft:    fourier.NewFFT(fftSize),
		window: Hamming(frameLen),
		buf:    make([]float64, fftSize),
		coeffs: make([]complex128, fftSize/2+1),
		power:  make([]float64, fftSize/2+1),
	}
}

// compute returns |FFT(w*frame)|^2 / N over the positive frequencies. The
// frame is zero-padded to the FFT size and the result is reused by the
// next call.
func (s *spectrum) compute(frame []float64) []float64 {
	for i, w := range s.window {
		s.buf[i] = frame[i] * w
	}
	clear(s.buf[len(s.window):])
	s.fft.Coefficients(s.coeffs, s.buf)
	n := float64(len(s.buf))
	for i, c := range s.coeffs {
		s.power[i] = (real(c)*real(c) + imag(c)*imag(c)) / n
	}
	return s.power
}

// PowerSpectrum computes the Hamming-windowed power spectrum of one frame.
func PowerSpectrum(frame []float64, fftSize int) []float64 {
	s := newSpectrum(len(frame), fftSize)
	return append([]float64(nil), s.compute(frame)...)
}
