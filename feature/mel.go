package feature

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// melFilter is the non-zero span of one triangular filter.
type melFilter struct {
	start   int
	weights []float64
}

// MelFilterbank is a bank of triangular filters equally spaced on the Mel
// scale.
type MelFilterbank struct {
	filters []melFilter
}

// NewMelFilterbank builds numFilters filters between lowHz and highHz over
// the fftSize/2+1 positive FFT bins.
func NewMelFilterbank(numFilters, fftSize, sampleRate int, lowHz, highHz float64) *MelFilterbank {
	nBins := fftSize/2 + 1
	lo, hi := hzToMel(lowHz), hzToMel(highHz)
	edges := make([]int, numFilters+2)
	for i := range edges {
		mel := lo + float64(i)*(hi-lo)/float64(numFilters+1)
		edges[i] = int(math.Floor(melToHz(mel) * float64(fftSize+1) / float64(sampleRate)))
	}

	fb := &MelFilterbank{filters: make([]melFilter, numFilters)}
	for i := range fb.filters {
		left, center, right := edges[i], edges[i+1], edges[i+2]
		dense := make([]float64, nBins)
		for j := left; j < center && j < nBins; j++ {
			dense[j] = float64(j-left) / float64(center-left)
		}
		for j := center; j <= right && j < nBins; j++ {
			if right != center {
				dense[j] = float64(right-j) / float64(right-center)
			}
		}
		start, end := -1, 0
		for j, v := range dense {
			if v != 0 {
				if start < 0 {
					start = j
				}
				end = j + 1
			}
		}
		if start >= 0 {
			fb.filters[i] = melFilter{start: start, weights: dense[start:end]}
		}
	}
	return fb
}

// Len returns the number of filters.
func (fb *MelFilterbank) Len() int { return len(fb.filters) }

// Apply returns the log filter energies of a power spectrum.
func (fb *MelFilterbank) Apply(power []float64) []float64 {
	out := make([]float64, len(fb.filters))
	fb.applyInto(out, power)
	return out
}

func (fb *MelFilterbank) applyInto(dst, power []float64) {
	for i, f := range fb.filters {
		e := 0.0
		if n := min(len(f.weights), len(power)-f.start); n > 0 {
			e = floats.Dot(f.weights[:n], power[f.start:f.start+n])
		}
		dst[i] = math.Log(max(e, 1e-30))
	}
}

// cepstrum turns log Mel energies into liftered DCT-II cepstra.
type cepstrum struct {
	cos    [][]float64
	lifter []float64
}

func newCepstrum(numCepstra, numFilters, lifter int) *cepstrum {
	c := &cepstrum{cos: make([][]float64, numCepstra)}
	for k := range c.cos {
		c.cos[k] = make([]float64, numFilters)
		for j := range c.cos[k] {
			c.cos[k][j] = math.Cos(math.Pi * float64(k) * (float64(j) + 0.5) / float64(numFilters))
		}
	}
	if lifter > 0 {
		c.lifter = make([]float64, numCepstra)
		for i := range c.lifter {
			c.lifter[i] = 1 + float64(lifter)/2*math.Sin(math.Pi*float64(i)/float64(lifter))
		}
	}
	return c
}

func (c *cepstrum) applyInto(dst, logMel []float64) {
	for k, row := range c.cos {
		dst[k] = floats.Dot(row, logMel)
	}
	if c.lifter != nil {
		floats.Mul(dst, c.lifter)
	}
}

// DCT applies an unscaled type-II DCT and keeps the first numCepstra
// coefficients.
func DCT(logMel []float64, numCepstra int) []float64 {
	out := make([]float64, numCepstra)
	newCepstrum(numCepstra, len(logMel), 0).applyInto(out, logMel)
	return out
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }
