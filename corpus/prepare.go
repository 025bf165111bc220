package corpus

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ieee0824/las-go/audio"
	"github.com/ieee0824/las-go/feature"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Files written by Prepare into its output directory.
const (
	PreparedFeatureList = "feats.txt"
	PreparedText        = "text.txt"
)

// PrepareConfig describes how conversation recordings are cut into
// utterances. Conversation lines read "<recording>_<start>_<end> <text>"
// and the recordings are "<recording>.wav" under RawDir.
type PrepareConfig struct {
	Conversations string
	RawDir        string
	OutDir        string
	// WriteWAV also keeps each segment as "<segment id>.wav".
	WriteWAV bool
	Feature  feature.Config
	Workers  int
	Progress bool
}

// PrepareReport summarises a Prepare run.
type PrepareReport struct {
	Recordings int
	Segments   int
	Frames     int
}

// Prepare cuts every conversation into its segments, extracts features for
// each, and writes "<segment id>.npy" files plus a feature list and the
// matching transcripts, both in conversation-file order.
func Prepare(cfg PrepareConfig) (PrepareReport, error) {
	if err := cfg.Feature.Validate(); err != nil {
		return PrepareReport{}, err
	}
	lines, err := ReadLines(cfg.Conversations)
	if err != nil {
		return PrepareReport{}, err
	}
	recordings, segments, err := audio.ReadSegments(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return PrepareReport{}, errors.Wrap(err, cfg.Conversations)
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return PrepareReport{}, errors.Wrap(err, "create output directory")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.Default(int64(len(recordings)), "splitting")
	} else {
		bar = progressbar.DefaultSilent(int64(len(recordings)))
	}
	frames := make([]int, len(recordings))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, rec := range recordings {
		g.Go(func() error {
			n, err := prepareRecording(cfg, rec, segments[rec])
			if err != nil {
				return errors.Wrapf(err, "recording %s", rec)
			}
			frames[i] = n
			return bar.Add(1)
		})
	}
	if err := g.Wait(); err != nil {
		return PrepareReport{}, err
	}
	_ = bar.Finish()

	var list, text []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		list = append(list, fields[0]+".npy")
		text = append(text, strings.Join(fields[1:], " "))
	}
	if err := WriteLines(filepath.Join(cfg.OutDir, PreparedFeatureList), list); err != nil {
		return PrepareReport{}, err
	}
	if err := WriteLines(filepath.Join(cfg.OutDir, PreparedText), text); err != nil {
		return PrepareReport{}, err
	}

	rep := PrepareReport{Recordings: len(recordings), Segments: len(list)}
	for _, n := range frames {
		rep.Frames += n
	}
	klog.V(1).Infof("prepared %d segments from %d recordings", rep.Segments, rep.Recordings)
	return rep, nil
}

func prepareRecording(cfg PrepareConfig, rec string, segs []audio.Segment) (int, error) {
	clip, err := audio.ReadWAVFile(filepath.Join(cfg.RawDir, rec+".wav"))
	if err != nil {
		return 0, err
	}
	clips, err := audio.Cut(clip, segs)
	if err != nil {
		return 0, err
	}
	ex, err := feature.NewExtractor(cfg.Feature)
	if err != nil {
		return 0, err
	}
	frames := 0
	for i, seg := range segs {
		if cfg.WriteWAV {
			if err := audio.WriteWAVFile(filepath.Join(cfg.OutDir, seg.ID+".wav"), clips[i]); err != nil {
				return 0, err
			}
		}
		m, err := ex.Extract(clips[i].Samples)
		if err != nil {
			return 0, errors.Wrapf(err, "segment %s", seg.ID)
		}
		if err := SaveFeatures(filepath.Join(cfg.OutDir, seg.ID+".npy"), m); err != nil {
			return 0, err
		}
		frames += len(m)
	}
	return frames, nil
}
