package corpus

import (
	"path/filepath"
	"strings"

	"github.com/ieee0824/las-go/audio"
	"github.com/ieee0824/las-go/feature"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
)

// LoadFeatures reads a (frames, dims) .npy feature array.
func LoadFeatures(path string) (mathutil.Mat, error) {
	a, err := artifact.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 2 {
		return nil, errors.Errorf("features %q have shape %v, want (frames, dims)", path, a.Shape)
	}
	return mathutil.Unflatten(a.Data, a.Shape[0], a.Shape[1]), nil
}

// SaveFeatures writes m as a (frames, dims) .npy array.
func SaveFeatures(path string, m mathutil.Mat) error {
	return artifact.SaveFloat64s(path, mathutil.Flatten(m), len(m), mathutil.Cols(m))
}

// LoadUtterance reads one utterance: .wav files go through the MFCC
// extractor, anything else is read as a .npy feature array.
func LoadUtterance(path string, ex *feature.Extractor) (mathutil.Mat, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return LoadFeatures(path)
	}
	clip, err := audio.ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ex.Extract(clip.Samples)
	return m, errors.Wrapf(err, "features of %s", path)
}

// LoadFeatureList reads the utterances named one per line in listPath.
// Relative names are resolved against the list's directory.
func LoadFeatureList(listPath string) ([]mathutil.Mat, error) {
	names, err := ReadLines(listPath)
	if err != nil {
		return nil, err
	}
	ex, err := feature.NewExtractor(feature.DefaultConfig())
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(listPath)
	var out []mathutil.Mat
	for _, name := range names {
		if name == "" {
			continue
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		m, err := LoadUtterance(name, ex)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
