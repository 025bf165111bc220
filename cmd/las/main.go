package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	las "github.com/ieee0824/las-go"
	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/decoder"
	"github.com/ieee0824/las-go/encoder"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/internal/report"
	"github.com/ieee0824/las-go/lexicon"
	"github.com/ieee0824/las-go/scoring"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagMode        = flag.String("mode", "transcript", "transcript, cer, perp or init")
	flagSaveDir     = flag.String("save-directory", "output/baseline/v1", "directory holding model.ckpt and run artifacts")
	flagPreset      = flag.String("preset", "seame", "hyperparameter preset for init: seame (multi-head) or tagalog (single-head)")
	flagBatchSize   = flag.Int("batch-size", 32, "utterances per batch")
	flagEncoderDim  = flag.Int("encoder-dim", 0, "listener hidden size (0 keeps the preset)")
	flagDecoderDim  = flag.Int("decoder-dim", 0, "speller hidden size (0 keeps the preset)")
	flagKeyDim      = flag.Int("key-dim", 0, "per-head key size (0 keeps the preset)")
	flagValueDim    = flag.Int("value-dim", 0, "per-head value size (0 keeps the preset)")
	flagNumHeads    = flag.Int("num-heads", 0, "attention heads (0 keeps the preset)")
	flagForceRate   = flag.Float64("teacher-force-rate", -1, "teacher forcing rate (negative keeps the model's)")
	flagGenLength   = flag.Int("generator-length", 0, "maximum transcript length (0 keeps the model's)")
	flagDevice      = flag.String("device", "cpu", "compute device; only cpu is supported")
	flagSeed        = flag.Int64("seed", 1, "seed for initialisation and sampling")
	flagFeatures    = flag.String("features", "", "file listing one utterance per line: a .npy feature array or a 16 kHz .wav")
	flagRefs        = flag.String("refs", "", "reference transcripts, one per line; used by cer, perp and init")
	flagTranscripts = flag.String("transcripts", "submission.csv", "output CSV for transcript mode, relative to the save directory")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if err := os.MkdirAll(*flagSaveDir, 0o755); err != nil {
		klog.Exitf("create save directory: %+v", err)
	}
	ckpt := artifact.Path(*flagSaveDir, artifact.Checkpoint)

	switch *flagMode {
	case "init":
		initModel(ckpt)
	case "transcript", "cer", "perp":
		m, err := las.LoadFile(ckpt)
		if err != nil {
			klog.Exitf("load model: %+v", err)
		}
		applyOverrides(m)
		feats := mustFeatures()
		switch *flagMode {
		case "transcript":
			writeTranscripts(m, feats)
		case "cer":
			cer(m, feats, mustRefs(len(feats)))
		default:
			perplexity(m, feats, mustRefs(len(feats)))
		}
	default:
		klog.Exitf("unknown mode %q", *flagMode)
	}
}

func configs() (encoder.Config, decoder.Config) {
	enc, dec := encoder.DefaultConfig(), decoder.DefaultConfig()
	if *flagPreset == "tagalog" {
		enc, dec = encoder.SingleHeadConfig(), decoder.SingleHeadConfig()
	}
	if *flagEncoderDim > 0 {
		enc.EncoderDim = *flagEncoderDim
	}
	if *flagDecoderDim > 0 {
		dec.DecoderDim = *flagDecoderDim
	}
	if *flagKeyDim > 0 {
		enc.KeyDim, dec.KeyDim = *flagKeyDim, *flagKeyDim
	}
	if *flagValueDim > 0 {
		enc.ValueDim, dec.ValueDim = *flagValueDim, *flagValueDim
	}
	if *flagNumHeads > 0 {
		enc.NumHeads, dec.NumHeads = *flagNumHeads, *flagNumHeads
	}
	if *flagForceRate >= 0 {
		dec.TeacherForceRate = *flagForceRate
	}
	if *flagGenLength > 0 {
		dec.GeneratorLength = *flagGenLength
	}
	dec.Device = *flagDevice
	return enc, dec
}

func initModel(ckpt string) {
	if *flagRefs == "" {
		klog.Exitf("init needs -refs to build the character set")
	}
	ts, err := corpus.LoadTranscriptsFile(*flagRefs)
	if err != nil {
		klog.Exitf("load references: %+v", err)
	}
	cs := lexicon.BuildCharset(corpus.Texts(ts))
	enc, dec := configs()
	m, err := las.New(cs, las.WithEncoderConfig(enc), las.WithDecoderConfig(dec), las.WithSeed(*flagSeed))
	if err != nil {
		klog.Exitf("create model: %+v", err)
	}
	if err := m.SaveFile(ckpt); err != nil {
		klog.Exitf("save model: %+v", err)
	}
	klog.Infof("initialised %q with %d characters", ckpt, cs.Size())
}

func applyOverrides(m *las.Model) {
	if *flagForceRate >= 0 {
		m.Speller.Config.TeacherForceRate = *flagForceRate
	}
	if *flagGenLength > 0 {
		m.Speller.Config.GeneratorLength = *flagGenLength
	}
	if err := m.Speller.Config.Validate(); err != nil {
		klog.Exitf("speller config: %+v", err)
	}
	m.SetSeed(*flagSeed)
}

func mustFeatures() []mathutil.Mat {
	if *flagFeatures == "" {
		klog.Exitf("-features is required")
	}
	feats, err := corpus.LoadFeatureList(*flagFeatures)
	if err != nil {
		klog.Exitf("load features: %+v", err)
	}
	klog.Infof("loaded %s utterances", humanize.Comma(int64(len(feats))))
	return feats
}

func mustRefs(n int) []string {
	if *flagRefs == "" {
		klog.Exitf("-refs is required in %s mode", *flagMode)
	}
	ts, err := corpus.LoadTranscriptsFile(*flagRefs)
	if err != nil {
		klog.Exitf("load references: %+v", err)
	}
	if len(ts) != n {
		klog.Exitf("%d references for %d utterances", len(ts), n)
	}
	return corpus.Texts(ts)
}

// batches splits [0, n) into consecutive ranges of at most size.
func batches(n, size int) [][2]int {
	size = max(size, 1)
	var out [][2]int
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}
	return out
}

func transcribe(m *las.Model, feats []mathutil.Mat) []string {
	bs := batches(len(feats), *flagBatchSize)
	bar := progressbar.Default(int64(len(bs)), "transcribing")
	out := make([]string, 0, len(feats))
	for _, b := range bs {
		ts, err := m.Transcribe(feats[b[0]:b[1]])
		if err != nil {
			klog.Exitf("transcribe utterances %d-%d: %+v", b[0], b[1]-1, err)
		}
		out = append(out, ts...)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return out
}

func writeTranscripts(m *las.Model, feats []mathutil.Mat) {
	texts := transcribe(m, feats)
	hyps := make([]corpus.Hypothesis, len(texts))
	for i, t := range texts {
		hyps[i] = corpus.Hypothesis{ID: fmt.Sprint(i + 1), Text: t}
	}
	path := *flagTranscripts
	if !filepath.IsAbs(path) {
		path = artifact.Path(*flagSaveDir, path)
	}
	if err := corpus.WriteHypothesesFile(path, hyps); err != nil {
		klog.Exitf("write transcripts: %+v", err)
	}
	logPath := artifact.Path(*flagSaveDir, artifact.TrainLog)
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		klog.Exitf("open log: %+v", err)
	}
	for _, t := range texts {
		fmt.Fprintln(f, t)
	}
	if err := f.Close(); err != nil {
		klog.Exitf("close log: %+v", err)
	}
	klog.Infof("wrote %s transcripts to %q", humanize.Comma(int64(len(texts))), path)
}

func cer(m *las.Model, feats []mathutil.Mat, refs []string) {
	hyps := transcribe(m, feats)
	logPath := artifact.Path(*flagSaveDir, artifact.CERLog)
	f, err := os.Create(logPath)
	if err != nil {
		klog.Exitf("create cer log: %+v", err)
	}
	norm, raw, err := (&scoring.CharEvaluator{Log: f}).Score(hyps, refs)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		klog.Exitf("score transcripts: %+v", err)
	}
	if err := artifact.SaveFloat64s(artifact.Path(*flagSaveDir, artifact.ValidationScores), norm); err != nil {
		klog.Exitf("save scores: %+v", err)
	}
	total := 0
	for _, d := range raw {
		total += d
	}
	fmt.Println(report.Table([]string{"utterances", "edits", "mean cer"},
		[]string{humanize.Comma(int64(len(norm))), humanize.Comma(int64(total)), fmt.Sprintf("%.4f", scoring.Mean(norm))}))
}

func perplexity(m *las.Model, feats []mathutil.Mat, refs []string) {
	var stats decoder.LossStats
	for _, b := range batches(len(feats), *flagBatchSize) {
		s, err := m.Loss(feats[b[0]:b[1]], refs[b[0]:b[1]], decoder.ModeForced)
		if err != nil {
			klog.Exitf("score utterances %d-%d: %+v", b[0], b[1]-1, err)
		}
		stats.Add(s)
	}
	fmt.Println(report.Table([]string{"utterances", "tokens", "loss", "perplexity"},
		[]string{humanize.Comma(int64(stats.Batch)), humanize.Comma(int64(stats.Tokens)),
			fmt.Sprintf("%.4f", stats.Loss()), fmt.Sprintf("%.4f", stats.Perplexity())}))
}
