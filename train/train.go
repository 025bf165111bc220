// Package train runs the epoch loop around a learner: training and
// validation passes, checkpointing on improvement and early stopping.
package train

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ieee0824/las-go/decoder"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Batch is a group of utterances and their target transcripts.
type Batch struct {
	Utterances []mathutil.Mat
	Texts      []string
}

// Len returns the number of utterances.
func (b Batch) Len() int { return len(b.Utterances) }

// Learner is a model that can be trained and evaluated one batch at a time.
type Learner interface {
	TrainStep(b Batch) (decoder.LossStats, error)
	EvalStep(b Batch) (decoder.LossStats, error)
	Save(w io.Writer) error
}

// Loop configures the epoch loop.
type Loop struct {
	Epochs   int
	Patience int
	// MinFrames skips batches whose shortest utterance has at most this many frames.
	MinFrames int
	// CheckpointPath receives the learner whenever validation loss improves.
	CheckpointPath string
	// LogPath, if set, is truncated and receives one line per event.
	LogPath  string
	Progress bool
}

// DefaultLoop returns 100 epochs, patience 10 and the 8 frame minimum.
func DefaultLoop() Loop {
	return Loop{Epochs: 100, Patience: 10, MinFrames: 8}
}

// EpochStats records one epoch.
type EpochStats struct {
	Epoch    int
	Train    decoder.LossStats
	Val      decoder.LossStats
	Skipped  int
	Improved bool
}

// History is the outcome of Run.
type History struct {
	Epochs    []EpochStats
	BestEpoch int
	BestLoss  float64
	// EarlyStopped is set when patience ran out before Epochs.
	EarlyStopped bool
}

// Degenerate reports whether b must not be used: it is empty, its shortest
// utterance has at most minFrames frames or one of its texts is empty.
func Degenerate(b Batch, minFrames int) bool {
	if b.Len() == 0 {
		return true
	}
	for _, u := range b.Utterances {
		if len(u) <= minFrames {
			return true
		}
	}
	for _, t := range b.Texts {
		if t == "" {
			return true
		}
	}
	return false
}

// Run trains for at most l.Epochs epochs and returns the per-epoch history.
func (l Loop) Run(learner Learner, trainSet, valSet []Batch) (*History, error) {
	log, err := openLog(l.LogPath)
	if err != nil {
		return nil, err
	}
	defer log.close()

	start := time.Now()
	h := &History{BestEpoch: -1, BestLoss: math.Inf(1)}
	for e := 0; e < l.Epochs; e++ {
		log.printf("Starting Epoch %d (%.2f Seconds)", e+1, time.Since(start).Seconds())
		st := EpochStats{Epoch: e}

		bar := l.bar(len(trainSet), fmt.Sprintf("epoch %d", e+1))
		for i, b := range trainSet {
			_ = bar.Add(1)
			if Degenerate(b, l.MinFrames) {
				st.Skipped++
				continue
			}
			s, err := learner.TrainStep(b)
			if err != nil {
				return h, errors.Wrapf(err, "epoch %d train batch %d", e+1, i)
			}
			klog.V(1).Infof("epoch %d batch %d: loss %.4f perplexity %.4f", e+1, i, s.Loss(), s.Perplexity())
			st.Train.Add(s)
		}
		_ = bar.Finish()
		log.printf("Train Loss: %f", st.Train.Loss())
		log.printf("Avg Train Perplexity: %f", st.Train.Perplexity())

		for i, b := range valSet {
			if Degenerate(b, l.MinFrames) {
				st.Skipped++
				continue
			}
			s, err := learner.EvalStep(b)
			if err != nil {
				return h, errors.Wrapf(err, "epoch %d validation batch %d", e+1, i)
			}
			st.Val.Add(s)
		}
		if st.Skipped > 0 {
			klog.Warningf("epoch %d: skipped %s degenerate batches", e+1, humanize.Comma(int64(st.Skipped)))
		}

		valLoss := st.Val.Loss()
		stop := false
		if st.Val.Batch == 0 {
			klog.Warningf("epoch %d: no usable validation batches; not comparing against the best loss", e+1)
		} else if valLoss < h.BestLoss {
			h.BestLoss, h.BestEpoch = valLoss, e
			st.Improved = true
			if err := l.checkpoint(learner); err != nil {
				return h, err
			}
		} else if e-h.BestEpoch > l.Patience {
			stop = true
		}
		log.printf("Val Loss: %f", valLoss)
		log.printf("Avg Val Perplexity: %f", st.Val.Perplexity())
		h.Epochs = append(h.Epochs, st)
		if stop {
			h.EarlyStopped = true
			klog.Infof("no improvement since epoch %d; stopping", h.BestEpoch+1)
			break
		}
	}
	return h, nil
}

func (l Loop) bar(n int, desc string) *progressbar.ProgressBar {
	if l.Progress {
		return progressbar.Default(int64(n), desc)
	}
	return progressbar.DefaultSilent(int64(n), desc)
}

// checkpoint writes the learner next to CheckpointPath and renames it into
// place once complete.
func (l Loop) checkpoint(learner Learner) error {
	if l.CheckpointPath == "" {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.CheckpointPath), filepath.Base(l.CheckpointPath)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "create checkpoint for %q", l.CheckpointPath)
	}
	if err := learner.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "save checkpoint %q", l.CheckpointPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "close checkpoint %q", l.CheckpointPath)
	}
	if err := os.Rename(tmp.Name(), l.CheckpointPath); err != nil {
		return errors.Wrapf(err, "install checkpoint %q", l.CheckpointPath)
	}
	klog.V(1).Infof("saved checkpoint %q", l.CheckpointPath)
	return nil
}

// runLog mirrors progress lines to klog and, optionally, a plain file.
type runLog struct {
	f *os.File
}

func openLog(path string) (*runLog, error) {
	if path == "" {
		return &runLog{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create training log %q", path)
	}
	return &runLog{f: f}, nil
}

func (r *runLog) printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	klog.Info(msg)
	if r.f != nil {
		fmt.Fprintln(r.f, msg)
	}
}

func (r *runLog) close() {
	if r.f != nil {
		r.f.Close()
	}
}
