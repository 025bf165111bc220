package scoring

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TopKConfig configures a beam oracle run.
type TopKConfig struct {
	SaveDir    string
	References []string
	// Beams holds Width consecutive candidates per reference, in reference order.
	Beams []corpus.Hypothesis
}

// TopKReport holds the per-utterance oracle scores of a beam file.
type TopKReport struct {
	RunID   string
	Width   int
	MinCERs []float64
	MinIdxs []int
	Mean    float64
}

// RunTopK scores every beam candidate against its reference at character
// level and keeps the best candidate per utterance. The beam width is the
// number of leading rows sharing the first row's id.
func RunTopK(cfg TopKConfig) (*TopKReport, error) {
	if len(cfg.Beams) == 0 {
		return nil, errors.Wrap(ErrBeamMismatch, "no beam rows")
	}
	width := corpus.BeamWidth(cfg.Beams)
	if len(cfg.Beams) != width*len(cfg.References) {
		return nil, errors.Wrapf(ErrBeamMismatch, "%d rows for %d references with %d beams", len(cfg.Beams), len(cfg.References), width)
	}
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create save directory %q", cfg.SaveDir)
	}
	report := &TopKReport{RunID: uuid.NewString(), Width: width}
	klog.Infof("top-k run %s: %s utterances, %d beams", report.RunID, humanize.Comma(int64(len(cfg.References))), width)

	refs := make([]string, 0, len(cfg.Beams))
	for _, r := range cfg.References {
		for k := 0; k < width; k++ {
			refs = append(refs, r)
		}
	}

	logPath := artifact.Path(cfg.SaveDir, artifact.CERLog)
	f, err := os.Create(logPath)
	if err != nil {
		return nil, errors.Wrapf(err, "create %q", logPath)
	}
	norm, raw, err := (&CharEvaluator{Log: f}).Score(corpus.HypothesisTexts(cfg.Beams), refs)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %q", logPath)
	}
	if err != nil {
		return nil, err
	}

	n := len(cfg.References)
	if err := artifact.SaveFloat64s(artifact.Path(cfg.SaveDir, artifact.TestCER), norm, n, width); err != nil {
		return nil, err
	}
	if err := artifact.SaveInt64s(artifact.Path(cfg.SaveDir, artifact.TestDist), raw, n, width); err != nil {
		return nil, err
	}
	if report.MinCERs, report.MinIdxs, err = TopK(norm, width); err != nil {
		return nil, err
	}
	if err := artifact.SaveFloat64s(artifact.Path(cfg.SaveDir, artifact.MinCERs), report.MinCERs); err != nil {
		return nil, err
	}
	if err := artifact.SaveInt64s(artifact.Path(cfg.SaveDir, artifact.MinIdxs), report.MinIdxs); err != nil {
		return nil, err
	}
	report.Mean = Mean(report.MinCERs)
	klog.Infof("top-k run %s: avg top-k cer %.4f", report.RunID, report.Mean)
	return report, nil
}
